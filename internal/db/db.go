package db

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/model"
)

// DigestStorage persists named digest records.
type DigestStorage interface {
	Save(ctx context.Context, d model.Digest) error
	Get(ctx context.Context, name string) (model.Digest, error)
	GetAll(ctx context.Context) ([]model.Digest, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewStorage returns a Postgres store when dsn is set and an in-memory store
// otherwise.
func NewStorage(dsn string) DigestStorage {
	if dsn != "" {
		return NewPostgresStore(dsn)
	}
	return NewMemStore()
}

type commandType int

const (
	cmdSave commandType = iota
	cmdGet
	cmdGetAll
)

type command struct {
	action  commandType
	name    string
	record  model.Digest
	respond chan<- response
}

type response struct {
	record  model.Digest
	records []model.Digest
	err     error
}

// MemStore keeps records in a map owned by a single goroutine; every access
// goes through the command channel.
type MemStore struct {
	commands  chan command
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemStore() *MemStore {
	s := &MemStore{
		commands: make(chan command),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *MemStore) run() {
	data := make(map[string]model.Digest)
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.commands:
			switch cmd.action {
			case cmdSave:
				data[cmd.record.Name] = cmd.record
				cmd.respond <- response{}
			case cmdGet:
				if d, ok := data[cmd.name]; ok {
					cmd.respond <- response{record: d}
				} else {
					cmd.respond <- response{err: errors.WithStack(customerrors.ErrDigestNotFound)}
				}
			case cmdGetAll:
				all := make([]model.Digest, 0, len(data))
				for _, d := range data {
					all = append(all, d)
				}
				sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
				cmd.respond <- response{records: all}
			}
		}
	}
}

func (s *MemStore) do(ctx context.Context, cmd command) (response, error) {
	// Buffered so the owner goroutine never blocks on an abandoned request.
	reply := make(chan response, 1)
	cmd.respond = reply

	select {
	case s.commands <- cmd:
	case <-s.done:
		return response{}, errors.WithStack(customerrors.ErrNotConnected)
	case <-ctx.Done():
		return response{}, errors.WithStack(ctx.Err())
	}

	select {
	case r := <-reply:
		return r, r.err
	case <-ctx.Done():
		return response{}, errors.WithStack(ctx.Err())
	}
}

func (s *MemStore) Save(ctx context.Context, d model.Digest) error {
	_, err := s.do(ctx, command{action: cmdSave, record: d})
	return err
}

func (s *MemStore) Get(ctx context.Context, name string) (model.Digest, error) {
	r, err := s.do(ctx, command{action: cmdGet, name: name})
	return r.record, err
}

func (s *MemStore) GetAll(ctx context.Context) ([]model.Digest, error) {
	r, err := s.do(ctx, command{action: cmdGetAll})
	return r.records, err
}

func (s *MemStore) Ping(_ context.Context) error {
	select {
	case <-s.done:
		return errors.WithStack(customerrors.ErrNotConnected)
	default:
		return nil
	}
}

func (s *MemStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
