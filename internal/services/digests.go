package services

import (
	"context"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/crypto"
	"github.com/Heidric/digest.git/internal/db"
	"github.com/Heidric/digest.git/internal/metrics"
	"github.com/Heidric/digest.git/internal/model"
)

// DigestService computes SHA-256 digests of request bodies and keeps named
// records in storage, with an LRU of recently used records in front of it.
type DigestService struct {
	storage db.DigestStorage
	cache   *lru.Cache[string, model.Digest]
	chunk   int
	now     func() time.Time
}

// NewDigestService creates the service. A cacheSize of zero disables the cache.
func NewDigestService(storage db.DigestStorage, cacheSize int) (*DigestService, error) {
	s := &DigestService{
		storage: storage,
		chunk:   crypto.DefaultChunkSize,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, model.Digest](cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create cache")
		}
		s.cache = cache
	}
	return s, nil
}

func (s *DigestService) hash(ctx context.Context, op string, r io.Reader) (crypto.Sum, int64, error) {
	sum, n, err := crypto.HashReader(ctx, r, s.chunk)
	metrics.BytesHashed.Add(float64(n))
	if err != nil {
		return crypto.Sum{}, n, err
	}
	metrics.DigestsComputed.WithLabelValues(op).Inc()
	return sum, n, nil
}

// Compute hashes r without storing anything.
func (s *DigestService) Compute(ctx context.Context, r io.Reader) (model.Computed, error) {
	sum, n, err := s.hash(ctx, "compute", r)
	if err != nil {
		return model.Computed{}, err
	}
	return model.Computed{SHA256: sum.String(), Size: n}, nil
}

// Register hashes r and stores the result under name.
func (s *DigestService) Register(ctx context.Context, name string, r io.Reader) (model.Digest, error) {
	if err := model.ValidateName(name); err != nil {
		return model.Digest{}, err
	}
	sum, n, err := s.hash(ctx, "register", r)
	if err != nil {
		return model.Digest{}, err
	}
	return s.save(ctx, model.Digest{Name: name, SHA256: sum.String(), Size: n, CreatedAt: s.now()})
}

// Import stores a digest computed elsewhere.
func (s *DigestService) Import(ctx context.Context, d model.Digest) (model.Digest, error) {
	if err := d.Validate(); err != nil {
		return model.Digest{}, err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	return s.save(ctx, d)
}

func (s *DigestService) save(ctx context.Context, d model.Digest) (model.Digest, error) {
	if err := s.storage.Save(ctx, d); err != nil {
		return model.Digest{}, err
	}
	if s.cache != nil {
		s.cache.Add(d.Name, d)
	}
	return d, nil
}

// Get returns the record registered under name.
func (s *DigestService) Get(ctx context.Context, name string) (model.Digest, error) {
	if err := model.ValidateName(name); err != nil {
		return model.Digest{}, err
	}
	if s.cache != nil {
		if d, ok := s.cache.Get(name); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return d, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	d, err := s.storage.Get(ctx, name)
	if err != nil {
		return model.Digest{}, err
	}
	if s.cache != nil {
		s.cache.Add(name, d)
	}
	return d, nil
}

// List returns every record ordered by name.
func (s *DigestService) List(ctx context.Context) ([]model.Digest, error) {
	return s.storage.GetAll(ctx)
}

// Verify hashes r and compares it against the record registered under name.
func (s *DigestService) Verify(ctx context.Context, name string, r io.Reader) (model.Verification, error) {
	d, err := s.Get(ctx, name)
	if err != nil {
		return model.Verification{}, err
	}
	want, err := crypto.ParseHex(d.SHA256)
	if err != nil {
		return model.Verification{}, err
	}

	got, _, err := s.hash(ctx, "verify", r)
	if err != nil {
		return model.Verification{}, err
	}

	match := crypto.Equal(want, got)
	result := "mismatch"
	if match {
		result = "match"
	}
	metrics.Verifications.WithLabelValues(result).Inc()

	return model.Verification{Name: name, Match: match, SHA256: got.String()}, nil
}

func (s *DigestService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}
