package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
)

type refreshTokenRepo struct{ pool *pgxpool.Pool }

func (r *refreshTokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens
		   (id, client_id, owner_id, token_hash, scope, issued_at, expires_at, rotated_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, input.ClientID.String(), input.ResourceOwnerID.String(),
		input.TokenHash, input.Scope, now, now.Add(input.TTL), input.RotatedFrom,
	)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (r *refreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	var (
		rt       repository.RefreshToken
		clientID string
		ownerID  string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, client_id, owner_id, token_hash, scope, issued_at, expires_at, rotated_from, revoked_at
		   FROM refresh_tokens WHERE token_hash = $1`, tokenHash,
	).Scan(&rt.ID, &clientID, &ownerID, &rt.TokenHash, &rt.Scope,
		&rt.IssuedAt, &rt.ExpiresAt, &rt.RotatedFrom, &rt.RevokedAt)
	if err != nil {
		return nil, mapError(err)
	}
	rt.ClientID = types.ClientID(clientID)
	rt.ResourceOwnerID = types.ResourceOwnerID(ownerID)
	return &rt, nil
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, tokenID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`,
		tokenID,
	)
	return mapError(err)
}
