// Package cachestore implementa los repositorios volátiles (access tokens,
// refresh tokens, authorization codes) sobre cache.Client, con las entidades
// serializadas como JSON y TTL nativo del backend. Sirve igual sobre memoria
// que sobre Redis.
package cachestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/authkernel/internal/cache"
	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/google/uuid"
)

const (
	accessTokenPrefix  = "at:"
	refreshTokenPrefix = "rt:"
	refreshHashPrefix  = "rth:"
	authCodePrefix     = "ac:"
)

// retención extra tras expiración, para que introspection pueda responder
// sobre tokens recién vencidos antes de que el backend los purgue.
const expiredGrace = 24 * time.Hour

// AccessTokens implementa repository.AccessTokenRepository.
type AccessTokens struct {
	Cache cache.Client
	Now   func() time.Time
}

func (s *AccessTokens) Find(ctx context.Context, id types.AccessTokenID) (*repository.AccessToken, error) {
	var t repository.AccessToken
	if err := getJSON(ctx, s.Cache, accessTokenPrefix+id.String(), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *AccessTokens) Create(ctx context.Context, t *repository.AccessToken) error {
	return putJSON(ctx, s.Cache, accessTokenPrefix+t.ID.String(), t, ttlFor(t.ExpiresAt, s.now()))
}

func (s *AccessTokens) Save(ctx context.Context, t *repository.AccessToken) error {
	return s.Create(ctx, t)
}

func (s *AccessTokens) Revoke(ctx context.Context, id types.AccessTokenID) error {
	t, err := s.Find(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if t.RevokedAt != nil {
		return nil
	}
	now := s.now()
	t.RevokedAt = &now
	return s.Save(ctx, t)
}

func (s *AccessTokens) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// RefreshTokens implementa repository.RefreshTokenRepository. Mantiene dos
// entradas por token: la entidad por ID y un puntero hash→ID para el lookup
// de canje.
type RefreshTokens struct {
	Cache cache.Client
	Now   func() time.Time
}

func (s *RefreshTokens) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	now := s.now()
	rt := &repository.RefreshToken{
		ID:              uuid.NewString(),
		ClientID:        input.ClientID,
		ResourceOwnerID: input.ResourceOwnerID,
		TokenHash:       input.TokenHash,
		Scope:           input.Scope,
		IssuedAt:        now,
		ExpiresAt:       now.Add(input.TTL),
		RotatedFrom:     input.RotatedFrom,
	}
	ttl := ttlFor(rt.ExpiresAt, now)
	if err := putJSON(ctx, s.Cache, refreshTokenPrefix+rt.ID, rt, ttl); err != nil {
		return "", err
	}
	if err := s.Cache.Set(ctx, refreshHashPrefix+rt.TokenHash, rt.ID, ttl); err != nil {
		return "", err
	}
	return rt.ID, nil
}

func (s *RefreshTokens) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	id, err := s.Cache.Get(ctx, refreshHashPrefix+tokenHash)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var rt repository.RefreshToken
	if err := getJSON(ctx, s.Cache, refreshTokenPrefix+id, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *RefreshTokens) Revoke(ctx context.Context, tokenID string) error {
	var rt repository.RefreshToken
	if err := getJSON(ctx, s.Cache, refreshTokenPrefix+tokenID, &rt); err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	if rt.RevokedAt != nil {
		return nil
	}
	now := s.now()
	rt.RevokedAt = &now
	return putJSON(ctx, s.Cache, refreshTokenPrefix+tokenID, &rt, ttlFor(rt.ExpiresAt, now))
}

func (s *RefreshTokens) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// AuthCodes implementa repository.AuthorizationCodeRepository. El consumo
// borra la entrada en la misma operación: un code canjeado dos veces falla
// la segunda con ErrNotFound.
type AuthCodes struct {
	Cache cache.Client
	Now   func() time.Time
}

func (s *AuthCodes) Create(ctx context.Context, code *repository.AuthorizationCode) error {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	return putJSON(ctx, s.Cache, authCodePrefix+code.CodeHash, code, ttlFor(code.ExpiresAt, now))
}

func (s *AuthCodes) Consume(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	raw, err := s.Cache.GetDelete(ctx, authCodePrefix+codeHash)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var code repository.AuthorizationCode
	if err := json.Unmarshal([]byte(raw), &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func getJSON(ctx context.Context, c cache.Client, key string, out any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return repository.ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func putJSON(ctx context.Context, c cache.Client, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(raw), ttl)
}

func ttlFor(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now) + expiredGrace
	if ttl <= 0 {
		ttl = time.Minute
	}
	return ttl
}
