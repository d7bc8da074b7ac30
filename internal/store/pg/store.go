// Package pg implementa los repositorios durables (clients, scopes, users,
// consents, refresh tokens) sobre PostgreSQL vía pgxpool.
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Config tuning opcional del pool.
type Config struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// Store agrupa el pool y expone las vistas repositorio.
type Store struct {
	pool *pgxpool.Pool
}

// New crea el pool y verifica conectividad. El ping fallido no aborta el
// arranque: la app puede levantar con la DB temporalmente caída.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	log := logger.L().With(logger.Layer("store"), logger.Component("pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("startup ping failed", logger.Err(err))
	} else {
		log.Info("pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Ping verifica conectividad.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Clients retorna la vista ClientRepository.
func (s *Store) Clients() repository.ClientRepository { return &clientRepo{pool: s.pool} }

// RefreshTokens retorna la vista RefreshTokenRepository.
func (s *Store) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshTokenRepo{pool: s.pool}
}

// Scopes retorna la vista ScopeRepository.
func (s *Store) Scopes() repository.ScopeRepository { return &scopeRepo{pool: s.pool} }

// Users retorna la vista UserAccountRepository.
func (s *Store) Users() repository.UserAccountRepository { return &userRepo{pool: s.pool} }

// Consents retorna la vista ConsentRepository.
func (s *Store) Consents() repository.ConsentRepository { return &consentRepo{pool: s.pool} }

// mapError traduce errores pgx a los sentinels del dominio.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}
