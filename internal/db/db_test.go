package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/model"
)

func TestMemStore(t *testing.T) {
	t.Run("Save and Get", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemStore()
		defer store.Close()

		rec := model.Digest{Name: "abc", SHA256: abcHex, Size: 3, CreatedAt: time.Now()}
		require.NoError(t, store.Save(ctx, rec))

		got, err := store.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemStore()
		defer store.Close()

		require.NoError(t, store.Save(ctx, model.Digest{Name: "x", Size: 1}))
		require.NoError(t, store.Save(ctx, model.Digest{Name: "x", Size: 2}))

		got, err := store.Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Size)
	})

	t.Run("Get missing", func(t *testing.T) {
		store := NewMemStore()
		defer store.Close()

		_, err := store.Get(context.Background(), "nope")
		assert.True(t, errors.Is(err, customerrors.ErrDigestNotFound))
	})

	t.Run("GetAll sorted", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemStore()
		defer store.Close()

		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, store.Save(ctx, model.Digest{Name: name}))
		}
		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})
	})

	t.Run("Closed store", func(t *testing.T) {
		store := NewMemStore()
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.True(t, errors.Is(store.Ping(context.Background()), customerrors.ErrNotConnected))
		err := store.Save(context.Background(), model.Digest{Name: "x"})
		assert.True(t, errors.Is(err, customerrors.ErrNotConnected))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		store := NewMemStore()
		defer store.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.Get(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("Concurrent access", func(t *testing.T) {
		ctx := context.Background()
		store := NewMemStore()
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = store.Save(ctx, model.Digest{Name: string(rune('a' + i%26))})
				_, _ = store.GetAll(ctx)
			}(i)
		}
		wg.Wait()

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 26)
	})
}

func TestNewStorage(t *testing.T) {
	mem := NewStorage("")
	defer mem.Close()
	assert.IsType(t, &MemStore{}, mem)

	pg := NewStorage("postgres://localhost/db")
	assert.IsType(t, &PostgresStore{}, pg)
}
