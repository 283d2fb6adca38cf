package db

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/logger"
	"github.com/Heidric/digest.git/internal/model"
)

const (
	createTableQuery = `
        CREATE TABLE IF NOT EXISTS digests (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL UNIQUE,
            sha256 CHAR(64) NOT NULL,
            size BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )
    `
	saveQuery = `
        INSERT INTO digests (name, sha256, size, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (name) DO UPDATE SET sha256 = $2, size = $3, created_at = $4
    `
	getQuery    = "SELECT name, sha256, size, created_at FROM digests WHERE name = $1"
	getAllQuery = "SELECT name, sha256, size, created_at FROM digests ORDER BY name"
)

type PostgresStore struct {
	dsn       string
	db        *sql.DB
	mu        sync.Mutex
	connected bool
	closeOnce sync.Once
}

// NewPostgresStore returns a store that connects lazily on first use.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{
		dsn: dsn,
	}
}

func (p *PostgresStore) resetConnection() {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Log.Warn().Msg("Resetting database connection")

	if p.db != nil {
		p.db.Close()
		p.db = nil
	}
	p.connected = false
}

func (p *PostgresStore) handleQueryError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, sql.ErrConnDone) ||
		strings.Contains(strings.ToLower(err.Error()), "connection") {
		logger.Log.Error().Err(err).Msg("Detected connection error")
		p.resetConnection()
	}
}

// ensureConnected returns the live pool, opening it on first use. Callers
// must use the returned handle: p.db may be reset concurrently.
func (p *PostgresStore) ensureConnected(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return p.db, nil
	}

	if p.dsn == "" {
		return nil, errors.WithStack(customerrors.ErrNotConnected)
	}

	logger.Log.Debug().Msg("Opening new database connection")
	db, err := sql.Open("pgx", p.dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database ping")
	}

	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create table")
	}

	logger.Log.Info().Msg("Database connection established")
	p.db = db
	p.connected = true
	return db, nil
}

func (p *PostgresStore) Save(ctx context.Context, d model.Digest) error {
	db, err := p.ensureConnected(ctx)
	if err != nil {
		return err
	}

	err = withPGRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, saveQuery, d.Name, d.SHA256, d.Size, d.CreatedAt)
		return err
	})
	if err != nil {
		p.handleQueryError(err)
		return errors.Wrapf(err, "save %s", d.Name)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, name string) (model.Digest, error) {
	db, err := p.ensureConnected(ctx)
	if err != nil {
		return model.Digest{}, err
	}

	var d model.Digest
	err = withPGRetry(ctx, func() error {
		return db.QueryRowContext(ctx, getQuery, name).
			Scan(&d.Name, &d.SHA256, &d.Size, &d.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Digest{}, errors.WithStack(customerrors.ErrDigestNotFound)
	}
	if err != nil {
		p.handleQueryError(err)
		return model.Digest{}, errors.Wrapf(err, "get %s", name)
	}
	d.SHA256 = strings.TrimSpace(d.SHA256)
	return d, nil
}

func (p *PostgresStore) GetAll(ctx context.Context) ([]model.Digest, error) {
	db, err := p.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, getAllQuery)
	if err != nil {
		p.handleQueryError(err)
		return nil, errors.Wrap(err, "list digests")
	}
	defer rows.Close()

	var all []model.Digest
	for rows.Next() {
		var d model.Digest
		if err := rows.Scan(&d.Name, &d.SHA256, &d.Size, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan digest")
		}
		d.SHA256 = strings.TrimSpace(d.SHA256)
		all = append(all, d)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate digests")
	}
	return all, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	db, err := p.ensureConnected(ctx)
	if err != nil {
		return errors.Wrap(customerrors.ErrNotConnected, err.Error())
	}
	return db.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}

	var err error
	p.closeOnce.Do(func() {
		err = p.db.Close()
		p.connected = false
	})
	return err
}
