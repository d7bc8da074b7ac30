package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) Find(ctx context.Context, id types.UserAccountID) (*repository.UserAccount, error) {
	var (
		username string
		claims   []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT username, claims FROM user_accounts WHERE id = $1`, id.String(),
	).Scan(&username, &claims)
	if err != nil {
		return nil, mapError(err)
	}
	return buildUser(id, username, claims)
}

func (r *userRepo) FindByCredentials(ctx context.Context, username, password string) (*repository.UserAccount, error) {
	var (
		id     string
		claims []byte
		hash   string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, claims, password_hash FROM user_accounts WHERE username = $1`, username,
	).Scan(&id, &claims, &hash)
	if err != nil {
		return nil, mapError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, repository.ErrNotFound
	}
	return buildUser(types.UserAccountID(id), username, claims)
}

func buildUser(id types.UserAccountID, username string, claims []byte) (*repository.UserAccount, error) {
	var m map[string]any
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &m); err != nil {
			return nil, err
		}
	}
	return &repository.UserAccount{
		ID:       id,
		Username: username,
		Claims:   databag.New(m),
	}, nil
}

type consentRepo struct{ pool *pgxpool.Pool }

func (r *consentRepo) HasConsentBeenGiven(ctx context.Context, clientID types.ClientID, userID types.UserAccountID, requestedScope []string) (bool, error) {
	var granted []string
	err := r.pool.QueryRow(ctx,
		`SELECT granted_scope FROM consents
		  WHERE client_id = $1 AND user_id = $2 AND decided_at IS NOT NULL`,
		clientID.String(), userID.String(),
	).Scan(&granted)
	if err != nil {
		if repository.IsNotFound(mapError(err)) {
			return false, nil
		}
		return false, mapError(err)
	}
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range requestedScope {
		if _, ok := set[s]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *consentRepo) Save(ctx context.Context, c *repository.Consent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO consents
		   (client_id, user_id, requested_scope, requested_claims, granted_scope, granted_claims, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (client_id, user_id) DO UPDATE SET
		   requested_scope  = EXCLUDED.requested_scope,
		   requested_claims = EXCLUDED.requested_claims,
		   granted_scope    = EXCLUDED.granted_scope,
		   granted_claims   = EXCLUDED.granted_claims,
		   decided_at       = EXCLUDED.decided_at`,
		c.ClientID.String(), c.UserAccountID.String(),
		c.RequestedScope, c.RequestedClaims, c.GrantedScope, c.GrantedClaims, c.DecidedAt,
	)
	return mapError(err)
}
