package introspect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/tokenhint"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()

	hash, err := bcrypt.GenerateFromPassword([]byte("rs-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	st.AddResourceServer(&repository.ResourceServer{
		ID: "rs1", Name: "api", SecretHash: string(hash),
	})

	hints := tokenhint.NewManager(
		&tokenhint.AccessTokenHint{Tokens: st.AccessTokens()},
		&tokenhint.RefreshTokenHint{Tokens: st.RefreshTokens()},
	)
	return NewService(Deps{Hints: hints, ResourceServers: st.ResourceServers()}), st
}

func seedAccessToken(t *testing.T, st *memory.Store, id string, mutate func(*repository.AccessToken)) {
	t.Helper()
	now := time.Now().UTC()
	at := &repository.AccessToken{
		ID:              "at-1",
		ClientID:        "app",
		ResourceOwnerID: "u1",
		Parameters: databag.New(map[string]any{
			"scope":      "openid api",
			"token_type": "Bearer",
		}),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if id != "" {
		at.ID = types.AccessTokenID(id)
	}
	if mutate != nil {
		mutate(at)
	}
	if err := st.AccessTokens().Create(context.Background(), at); err != nil {
		t.Fatalf("seed token: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodPost, "/oauth2/introspect", nil)
	r.SetBasicAuth("rs1", "rs-secret")
	rs, perr := svc.Authenticate(ctx, r)
	if perr != nil {
		t.Fatalf("authenticate: %v", perr)
	}
	if rs.ID != "rs1" {
		t.Fatalf("resource server: %+v", rs)
	}

	for name, setup := range map[string]func(*http.Request){
		"no credentials": func(*http.Request) {},
		"wrong secret":   func(r *http.Request) { r.SetBasicAuth("rs1", "nope") },
		"unknown id":     func(r *http.Request) { r.SetBasicAuth("ghost", "rs-secret") },
	} {
		r := httptest.NewRequest(http.MethodPost, "/oauth2/introspect", nil)
		setup(r)
		_, perr := svc.Authenticate(ctx, r)
		if perr == nil || perr.Code != oauth2.CodeInvalidClient {
			t.Fatalf("%s: want invalid_client, got %v", name, perr)
		}
		if perr.Headers["WWW-Authenticate"] == "" {
			t.Fatalf("%s: missing WWW-Authenticate challenge", name)
		}
	}
}

func mustIntrospect(t *testing.T, svc *Service, token, hint string) map[string]any {
	t.Helper()
	resp, perr := svc.Introspect(context.Background(), token, hint)
	if perr != nil {
		t.Fatalf("introspect %q: %v", token, perr)
	}
	return resp
}

func TestIntrospect_ActiveAccessToken(t *testing.T) {
	svc, st := newTestService(t)
	seedAccessToken(t, st, "at-1", nil)

	resp := mustIntrospect(t, svc, "at-1", "")
	if resp["active"] != true {
		t.Fatalf("want active, got %v", resp)
	}
	if resp["client_id"] != "app" || resp["sub"] != "u1" {
		t.Fatalf("identity fields: %v", resp)
	}
	if resp["scope"] != "openid api" || resp["token_type"] != "Bearer" {
		t.Fatalf("token fields: %v", resp)
	}
}

func TestIntrospect_InactiveShapes(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	assertInactive := func(t *testing.T, resp map[string]any) {
		t.Helper()
		if resp["active"] != false {
			t.Fatalf("want inactive, got %v", resp)
		}
		// el body inactivo nunca lleva nada más: no filtra existencia ni detalle
		if len(resp) != 1 {
			t.Fatalf("inactive body must be minimal, got %v", resp)
		}
	}

	t.Run("unknown token", func(t *testing.T) {
		assertInactive(t, mustIntrospect(t, svc, "does-not-exist", ""))
	})

	t.Run("empty token", func(t *testing.T) {
		assertInactive(t, mustIntrospect(t, svc, "", ""))
	})

	t.Run("expired token", func(t *testing.T) {
		seedAccessToken(t, st, "at-1", func(at *repository.AccessToken) {
			at.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		})
		assertInactive(t, mustIntrospect(t, svc, "at-1", ""))
	})

	t.Run("revoked token", func(t *testing.T) {
		seedAccessToken(t, st, "at-2", nil)
		if err := st.AccessTokens().Revoke(ctx, "at-2"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		assertInactive(t, mustIntrospect(t, svc, "at-2", ""))
	})
}

func TestIntrospect_RefreshTokenHint(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	raw := "refresh-raw-value"
	if _, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		ClientID:        "app",
		ResourceOwnerID: "u1",
		TokenHash:       tokens.SHA256Base64URL(raw),
		Scope:           []string{"openid"},
		TTL:             time.Hour,
	}); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	// con hint correcto y también sin hint (fallback al orden de registro)
	for _, hint := range []string{"refresh_token", "", "unknown-hint"} {
		resp := mustIntrospect(t, svc, raw, hint)
		if resp["active"] != true {
			t.Fatalf("hint %q: want active, got %v", hint, resp)
		}
		if resp["token_type"] != "refresh_token" || resp["scope"] != "openid" {
			t.Fatalf("hint %q: fields %v", hint, resp)
		}
	}
}

// brokenHint simula un backend de tokens caído.
type brokenHint struct{ err error }

func (h brokenHint) Hint() string { return "access_token" }

func (h brokenHint) Find(context.Context, string) (*tokenhint.Info, error) {
	return nil, h.err
}

func (h brokenHint) Revoke(context.Context, string) error { return h.err }

func TestIntrospect_RepositoryFailure(t *testing.T) {
	cause := errors.New("backend down")
	svc := NewService(Deps{Hints: tokenhint.NewManager(brokenHint{err: cause})})

	resp, perr := svc.Introspect(context.Background(), "at-1", "")
	if resp != nil {
		t.Fatalf("a repository failure must not produce a body, got %v", resp)
	}
	if perr == nil || perr.Code != oauth2.CodeServerError {
		t.Fatalf("want server_error, got %v", perr)
	}
	if !errors.Is(perr, cause) {
		t.Fatal("cause should travel through Unwrap")
	}
}
