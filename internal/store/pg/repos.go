package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

type clientRepo struct{ pool *pgxpool.Pool }

func (r *clientRepo) Find(ctx context.Context, id types.ClientID) (*client.Client, error) {
	var (
		meta  []byte
		owner string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT metadata, owner_id FROM oauth_clients WHERE id = $1`, id.String(),
	).Scan(&meta, &owner)
	if err != nil {
		return nil, mapError(err)
	}
	var m map[string]any
	if err := json.Unmarshal(meta, &m); err != nil {
		return nil, err
	}
	return &client.Client{
		ID:       id,
		Metadata: databag.New(m),
		OwnerID:  types.UserAccountID(owner),
	}, nil
}

func (r *clientRepo) Create(ctx context.Context, c *client.Client) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO oauth_clients (id, metadata, owner_id) VALUES ($1, $2, $3)`,
		c.ID.String(), meta, c.OwnerID.String(),
	)
	return mapError(err)
}

func (r *clientRepo) Save(ctx context.Context, c *client.Client) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE oauth_clients SET metadata = $2, owner_id = $3 WHERE id = $1`,
		c.ID.String(), meta, c.OwnerID.String(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *clientRepo) Delete(ctx context.Context, id types.ClientID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_clients WHERE id = $1`, id.String())
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type scopeRepo struct{ pool *pgxpool.Pool }

func (r *scopeRepo) GetByName(ctx context.Context, name string) (*repository.Scope, error) {
	var sc repository.Scope
	err := r.pool.QueryRow(ctx,
		`SELECT name, description, display_name FROM scopes WHERE name = $1`, name,
	).Scan(&sc.Name, &sc.Description, &sc.DisplayName)
	if err != nil {
		return nil, mapError(err)
	}
	return &sc, nil
}

func (r *scopeRepo) List(ctx context.Context) ([]repository.Scope, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, description, display_name FROM scopes ORDER BY name`,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []repository.Scope
	for rows.Next() {
		var sc repository.Scope
		if err := rows.Scan(&sc.Name, &sc.Description, &sc.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
