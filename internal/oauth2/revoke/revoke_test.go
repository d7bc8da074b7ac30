package revoke

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/tokenhint"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
)

func newTestRevoke(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	hints := tokenhint.NewManager(
		&tokenhint.AccessTokenHint{Tokens: st.AccessTokens()},
		&tokenhint.RefreshTokenHint{Tokens: st.RefreshTokens()},
	)
	return NewService(Deps{Hints: hints}), st
}

func seedToken(t *testing.T, st *memory.Store, id, clientID string) {
	t.Helper()
	now := time.Now().UTC()
	err := st.AccessTokens().Create(context.Background(), &repository.AccessToken{
		ID:         types.AccessTokenID(id),
		ClientID:   types.ClientID(clientID),
		Parameters: databag.New(map[string]any{"token_type": "Bearer"}),
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestRevoke_OwnAccessToken(t *testing.T) {
	svc, st := newTestRevoke(t)
	ctx := context.Background()
	seedToken(t, st, "at-1", "app")

	if perr := svc.Revoke(ctx, &client.Client{ID: "app"}, "at-1", "access_token"); perr != nil {
		t.Fatalf("revoke: %v", perr)
	}
	got, err := st.AccessTokens().Find(ctx, "at-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatal("token should be revoked")
	}
}

func TestRevoke_ForeignTokenIsSilentlyIgnored(t *testing.T) {
	svc, st := newTestRevoke(t)
	ctx := context.Background()
	seedToken(t, st, "at-1", "other-app")

	if perr := svc.Revoke(ctx, &client.Client{ID: "app"}, "at-1", ""); perr != nil {
		t.Fatalf("foreign revoke must not error: %v", perr)
	}
	got, err := st.AccessTokens().Find(ctx, "at-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.RevokedAt != nil {
		t.Fatal("foreign token must stay valid")
	}
}

func TestRevoke_UnknownAndEmptyToken(t *testing.T) {
	svc, _ := newTestRevoke(t)
	ctx := context.Background()
	c := &client.Client{ID: "app"}

	if perr := svc.Revoke(ctx, c, "no-such-token", ""); perr != nil {
		t.Fatalf("unknown token must not error: %v", perr)
	}
	if perr := svc.Revoke(ctx, c, "", ""); perr != nil {
		t.Fatalf("empty token must not error: %v", perr)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	svc, st := newTestRevoke(t)
	ctx := context.Background()
	seedToken(t, st, "at-1", "app")
	c := &client.Client{ID: "app"}

	for i := 0; i < 2; i++ {
		if perr := svc.Revoke(ctx, c, "at-1", "access_token"); perr != nil {
			t.Fatalf("revoke #%d: %v", i+1, perr)
		}
	}
}

func TestRevoke_RefreshToken(t *testing.T) {
	svc, st := newTestRevoke(t)
	ctx := context.Background()

	raw := "refresh-raw-value"
	if _, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		ClientID:  "app",
		TokenHash: tokens.SHA256Base64URL(raw),
		Scope:     []string{"openid"},
		TTL:       time.Hour,
	}); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	if perr := svc.Revoke(ctx, &client.Client{ID: "app"}, raw, "refresh_token"); perr != nil {
		t.Fatalf("revoke: %v", perr)
	}

	hint := &tokenhint.RefreshTokenHint{Tokens: st.RefreshTokens()}
	info, err := hint.Find(ctx, raw)
	if err != nil {
		t.Fatalf("find after revoke: %v", err)
	}
	if info.Active {
		t.Fatal("refresh token should be inactive after revocation")
	}
}
