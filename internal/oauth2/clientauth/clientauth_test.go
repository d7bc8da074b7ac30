package clientauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
)

const testSecret = "correct-horse-battery-staple-ok!"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	st := memory.New()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	seed := func(id string, metadata map[string]any) {
		t.Helper()
		err := st.Clients().Create(ctx, &client.Client{
			ID:       types.ClientID(id),
			Metadata: databag.New(metadata),
		})
		if err != nil {
			t.Fatalf("seed client %s: %v", id, err)
		}
	}
	seed("basic-app", map[string]any{
		client.KeyAuthMethod:       client.AuthMethodSecretBasic,
		client.KeyClientSecretHash: string(hash),
	})
	seed("post-app", map[string]any{
		client.KeyAuthMethod:   client.AuthMethodSecretPost,
		client.KeyClientSecret: testSecret,
	})
	seed("spa", map[string]any{
		client.KeyAuthMethod: client.AuthMethodNone,
	})

	methods := NewManager("authkernel",
		None{},
		SecretBasic{Realm: "authkernel"},
		SecretPost{},
	)
	return &Authenticator{Methods: methods, Clients: st.Clients()}
}

func formRequest(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func wantInvalidClient(t *testing.T, err error) {
	t.Helper()
	perr := oauth2.AsError(err)
	if perr.Code != oauth2.CodeInvalidClient {
		t.Fatalf("want invalid_client, got %s: %s", perr.Code, perr.Description)
	}
	if perr.Status != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", perr.Status)
	}
	if perr.Headers["WWW-Authenticate"] == "" {
		t.Fatal("missing WWW-Authenticate challenge")
	}
}

func TestAuthenticate_SecretBasic(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	r := formRequest(url.Values{"grant_type": {"client_credentials"}})
	r.SetBasicAuth("basic-app", testSecret)
	c, m, err := a.Authenticate(ctx, r)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if c.ID != "basic-app" || m.Name() != client.AuthMethodSecretBasic {
		t.Fatalf("got client %s via %s", c.ID, m.Name())
	}

	r = formRequest(url.Values{"grant_type": {"client_credentials"}})
	r.SetBasicAuth("basic-app", "wrong")
	_, _, err = a.Authenticate(ctx, r)
	wantInvalidClient(t, err)
}

func TestAuthenticate_SecretPost(t *testing.T) {
	a := newTestAuthenticator(t)

	c, m, err := a.Authenticate(context.Background(), formRequest(url.Values{
		"client_id":     {"post-app"},
		"client_secret": {testSecret},
	}))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if c.ID != "post-app" || m.Name() != client.AuthMethodSecretPost {
		t.Fatalf("got client %s via %s", c.ID, m.Name())
	}
}

func TestAuthenticate_AmbiguousMethods(t *testing.T) {
	a := newTestAuthenticator(t)

	// Basic y post a la vez: rechazo sin siquiera cargar el client.
	r := formRequest(url.Values{
		"client_id":     {"post-app"},
		"client_secret": {testSecret},
	})
	r.SetBasicAuth("basic-app", testSecret)

	_, _, err := a.Authenticate(context.Background(), r)
	perr := oauth2.AsError(err)
	if perr.Code != oauth2.CodeInvalidRequest {
		t.Fatalf("want invalid_request, got %s", perr.Code)
	}
}

func TestAuthenticate_MethodMismatch(t *testing.T) {
	a := newTestAuthenticator(t)

	// post-app está registrado con secret_post; presentar Basic es rechazo
	// aunque el secret sea correcto.
	r := formRequest(url.Values{"grant_type": {"client_credentials"}})
	r.SetBasicAuth("post-app", testSecret)
	_, _, err := a.Authenticate(context.Background(), r)
	wantInvalidClient(t, err)
}

func TestAuthenticate_PublicClientFallback(t *testing.T) {
	a := newTestAuthenticator(t)

	c, m, err := a.Authenticate(context.Background(), formRequest(url.Values{
		"client_id": {"spa"},
	}))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if c.ID != "spa" || m.Name() != client.AuthMethodNone {
		t.Fatalf("got client %s via %s", c.ID, m.Name())
	}
}

func TestAuthenticate_ConfidentialWithoutCredentials(t *testing.T) {
	a := newTestAuthenticator(t)

	_, _, err := a.Authenticate(context.Background(), formRequest(url.Values{
		"client_id": {"basic-app"},
	}))
	wantInvalidClient(t, err)
}

func TestAuthenticate_MissingAndUnknownClient(t *testing.T) {
	a := newTestAuthenticator(t)
	ctx := context.Background()

	_, _, err := a.Authenticate(ctx, formRequest(url.Values{}))
	wantInvalidClient(t, err)

	_, _, err = a.Authenticate(ctx, formRequest(url.Values{"client_id": {"ghost"}}))
	wantInvalidClient(t, err)
}
