package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/clientauth"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
	"github.com/dropDatabas3/authkernel/internal/oauth2/pkce"
	"github.com/dropDatabas3/authkernel/internal/oauth2/scope"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
)

const testSecret = "correct-horse-battery-staple-ok!"

func newTestEndpoint(t *testing.T) (*Endpoint, *memory.Store) {
	t.Helper()
	st := memory.New()
	ctx := context.Background()

	err := st.Clients().Create(ctx, &client.Client{
		ID: "app",
		Metadata: databag.New(map[string]any{
			client.KeyAuthMethod:   client.AuthMethodSecretPost,
			client.KeyClientSecret: testSecret,
			client.KeyRedirectURIs: []any{"https://app.example/cb"},
			client.KeyGrantTypes: []any{
				"authorization_code", "refresh_token", "client_credentials", "password",
			},
			client.KeyScope: "openid profile api",
		}),
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	err = st.Clients().Create(ctx, &client.Client{
		ID: "spa",
		Metadata: databag.New(map[string]any{
			client.KeyAuthMethod:   client.AuthMethodNone,
			client.KeyRedirectURIs: []any{"https://spa.example/cb"},
			client.KeyGrantTypes:   []any{"authorization_code"},
			client.KeyScope:        "openid api",
			client.KeyRequirePKCE:  true,
		}),
	})
	if err != nil {
		t.Fatalf("seed public client: %v", err)
	}

	for _, s := range []string{"openid", "profile", "api"} {
		st.AddScope(repository.Scope{Name: s})
	}
	if err := st.AddUser(&repository.UserAccount{
		ID: "u1", Username: "alice", Claims: databag.New(nil),
	}, "wonderland"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	methods := clientauth.NewManager("test",
		clientauth.None{},
		clientauth.SecretBasic{Realm: "test"},
		clientauth.SecretPost{},
	)
	auth := &clientauth.Authenticator{Methods: methods, Clients: st.Clients()}

	grants := grant.NewManager(
		&grant.AuthorizationCode{Codes: st.AuthorizationCodes(), PKCE: pkce.Default()},
		&grant.ClientCredentials{},
		&grant.Password{Users: st.Users()},
		&grant.RefreshToken{Tokens: st.RefreshTokens()},
	)

	checker := &scope.ParameterChecker{
		Policies: scope.NewPolicyManager("default",
			scope.NonePolicy{}, scope.DefaultPolicy{}, scope.ErrorPolicy{}),
		Scopes: st.Scopes(),
	}

	ep := NewEndpoint(EndpointDeps{
		Authenticator: auth,
		Grants:        grants,
		Scopes:        checker,
		Types:         NewTypeManager(Bearer{}),
		AccessTokens:  st.AccessTokens(),
		RefreshTokens: st.RefreshTokens(),
		IDs:           types.UUIDGenerator{},
	})
	return ep, st
}

func postForm(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func seedCode(t *testing.T, st *memory.Store, raw string, mutate func(*repository.AuthorizationCode)) {
	t.Helper()
	ac := &repository.AuthorizationCode{
		CodeHash:        tokens.SHA256Base64URL(raw),
		ClientID:        "app",
		ResourceOwnerID: "u1",
		RedirectURI:     "https://app.example/cb",
		Scope:           []string{"openid", "api"},
		IssuedAt:        time.Now().UTC(),
		ExpiresAt:       time.Now().UTC().Add(10 * time.Minute),
	}
	if mutate != nil {
		mutate(ac)
	}
	if err := st.AuthorizationCodes().Create(context.Background(), ac); err != nil {
		t.Fatalf("seed code: %v", err)
	}
}

func TestExchange_AuthorizationCode(t *testing.T) {
	ep, st := newTestEndpoint(t)
	seedCode(t, st, "raw-code", nil)

	resp, perr := ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"raw-code"},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr != nil {
		t.Fatalf("exchange: %v", perr)
	}
	if resp["access_token"] == "" {
		t.Fatalf("missing access_token in %v", resp)
	}
	if resp["token_type"] != "Bearer" {
		t.Fatalf("token_type: got %v", resp["token_type"])
	}
	if resp["scope"] != "openid api" {
		t.Fatalf("scope: got %v", resp["scope"])
	}
	// el client tiene refresh_token permitido: debe co-emitirse
	if _, ok := resp["refresh_token"].(string); !ok {
		t.Fatalf("expected a refresh_token, got %v", resp["refresh_token"])
	}

	// el token persistido refleja la emisión
	at, err := st.AccessTokens().Find(context.Background(), types.AccessTokenID(resp["access_token"].(string)))
	if err != nil {
		t.Fatalf("find access token: %v", err)
	}
	if at.ClientID != "app" || at.ResourceOwnerID != "u1" {
		t.Fatalf("token ownership: %+v", at)
	}
}

func TestExchange_CodeSingleUse(t *testing.T) {
	ep, st := newTestEndpoint(t)
	seedCode(t, st, "raw-code", nil)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"raw-code"},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}
	if _, perr := ep.Exchange(context.Background(), postForm(form)); perr != nil {
		t.Fatalf("first exchange: %v", perr)
	}
	_, perr := ep.Exchange(context.Background(), postForm(form))
	if perr == nil || perr.Code != oauth2.CodeInvalidGrant {
		t.Fatalf("second exchange: want invalid_grant, got %v", perr)
	}
}

func TestExchange_PKCE(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := tokens.SHA256Base64URL(verifier)

	t.Run("valid verifier", func(t *testing.T) {
		ep, st := newTestEndpoint(t)
		seedCode(t, st, "pkce-code", func(ac *repository.AuthorizationCode) {
			ac.CodeChallenge = challenge
			ac.ChallengeMethod = "S256"
		})
		_, perr := ep.Exchange(context.Background(), postForm(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {"pkce-code"},
			"redirect_uri":  {"https://app.example/cb"},
			"code_verifier": {verifier},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr != nil {
			t.Fatalf("exchange: %v", perr)
		}
	})

	t.Run("wrong verifier", func(t *testing.T) {
		ep, st := newTestEndpoint(t)
		seedCode(t, st, "pkce-code", func(ac *repository.AuthorizationCode) {
			ac.CodeChallenge = challenge
			ac.ChallengeMethod = "S256"
		})
		_, perr := ep.Exchange(context.Background(), postForm(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {"pkce-code"},
			"redirect_uri":  {"https://app.example/cb"},
			"code_verifier": {"not-the-right-verifier-at-all-00"},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeInvalidGrant {
			t.Fatalf("want invalid_grant, got %v", perr)
		}
	})

	t.Run("missing verifier", func(t *testing.T) {
		ep, st := newTestEndpoint(t)
		seedCode(t, st, "pkce-code", func(ac *repository.AuthorizationCode) {
			ac.CodeChallenge = challenge
			ac.ChallengeMethod = "S256"
		})
		_, perr := ep.Exchange(context.Background(), postForm(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {"pkce-code"},
			"redirect_uri":  {"https://app.example/cb"},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeInvalidGrant {
			t.Fatalf("want invalid_grant, got %v", perr)
		}
	})
}

func TestExchange_RedirectURIMismatch(t *testing.T) {
	ep, st := newTestEndpoint(t)
	seedCode(t, st, "raw-code", nil)

	_, perr := ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"raw-code"},
		"redirect_uri":  {"https://evil.example/cb"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr == nil || perr.Code != oauth2.CodeInvalidGrant {
		t.Fatalf("want invalid_grant, got %v", perr)
	}
}

func TestExchange_ClientCredentials(t *testing.T) {
	ep, _ := newTestEndpoint(t)

	resp, perr := ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"client_credentials"},
		"scope":         {"api"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr != nil {
		t.Fatalf("exchange: %v", perr)
	}
	if resp["scope"] != "api" {
		t.Fatalf("scope: got %v", resp["scope"])
	}
	// M2M nunca co-emite refresh token
	if _, ok := resp["refresh_token"]; ok {
		t.Fatalf("client_credentials must not issue a refresh token")
	}
}

func TestExchange_Password(t *testing.T) {
	ep, _ := newTestEndpoint(t)

	resp, perr := ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"password"},
		"username":      {"alice"},
		"password":      {"wonderland"},
		"scope":         {"openid"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr != nil {
		t.Fatalf("exchange: %v", perr)
	}
	if resp["access_token"] == "" {
		t.Fatalf("missing access_token")
	}

	_, perr = ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"password"},
		"username":      {"alice"},
		"password":      {"queen-of-hearts"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr == nil || perr.Code != oauth2.CodeInvalidGrant {
		t.Fatalf("bad password: want invalid_grant, got %v", perr)
	}
}

func TestExchange_RefreshRotation(t *testing.T) {
	ep, st := newTestEndpoint(t)
	ctx := context.Background()

	raw := "opaque-refresh-token-value"
	_, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		ClientID:        "app",
		ResourceOwnerID: "u1",
		TokenHash:       tokens.SHA256Base64URL(raw),
		Scope:           []string{"openid", "api"},
		TTL:             time.Hour,
	})
	if err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {raw},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}
	resp, perr := ep.Exchange(ctx, postForm(form))
	if perr != nil {
		t.Fatalf("exchange: %v", perr)
	}
	next, _ := resp["refresh_token"].(string)
	if next == "" || next == raw {
		t.Fatalf("rotation must issue a fresh refresh token")
	}

	// el token canjeado queda revocado
	if _, perr := ep.Exchange(ctx, postForm(form)); perr == nil || perr.Code != oauth2.CodeInvalidGrant {
		t.Fatalf("reuse after rotation: want invalid_grant, got %v", perr)
	}

	// el sucesor apunta al original
	rt, err := st.RefreshTokens().GetByHash(ctx, tokens.SHA256Base64URL(next))
	if err != nil {
		t.Fatalf("load successor: %v", err)
	}
	if rt.RotatedFrom == nil {
		t.Fatalf("successor must record its predecessor")
	}
}

func TestExchange_RefreshScopeSubset(t *testing.T) {
	ep, st := newTestEndpoint(t)
	ctx := context.Background()

	raw := "narrow-refresh-token"
	if _, err := st.RefreshTokens().Create(ctx, repository.CreateRefreshTokenInput{
		ClientID:        "app",
		ResourceOwnerID: "u1",
		TokenHash:       tokens.SHA256Base64URL(raw),
		Scope:           []string{"openid"},
		TTL:             time.Hour,
	}); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	_, perr := ep.Exchange(ctx, postForm(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {raw},
		"scope":         {"openid api"},
		"client_id":     {"app"},
		"client_secret": {testSecret},
	}))
	if perr == nil || perr.Code != oauth2.CodeInvalidScope {
		t.Fatalf("scope escalation: want invalid_scope, got %v", perr)
	}
}

func TestExchange_ProtocolErrors(t *testing.T) {
	ep, _ := newTestEndpoint(t)
	ctx := context.Background()

	t.Run("wrong secret", func(t *testing.T) {
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"app"},
			"client_secret": {"nope"},
		}))
		if perr == nil || perr.Code != oauth2.CodeInvalidClient {
			t.Fatalf("want invalid_client, got %v", perr)
		}
		if perr.Status != http.StatusUnauthorized || perr.Headers["WWW-Authenticate"] == "" {
			t.Fatalf("invalid_client must be 401 with WWW-Authenticate, got %d %v", perr.Status, perr.Headers)
		}
	})

	t.Run("missing grant_type", func(t *testing.T) {
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeUnsupportedGrantType {
			t.Fatalf("want unsupported_grant_type, got %v", perr)
		}
	})

	t.Run("unknown grant_type", func(t *testing.T) {
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"grant_type":    {"urn:example:custom"},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeUnsupportedGrantType {
			t.Fatalf("want unsupported_grant_type, got %v", perr)
		}
	})

	t.Run("grant not allowed for client", func(t *testing.T) {
		// spa solo tiene authorization_code registrado
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"grant_type": {"client_credentials"},
			"client_id":  {"spa"},
		}))
		if perr == nil || perr.Code != oauth2.CodeUnauthorizedClient {
			t.Fatalf("want unauthorized_client, got %v", perr)
		}
	})

	t.Run("unknown scope", func(t *testing.T) {
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"grant_type":    {"client_credentials"},
			"scope":         {"galactic-domination"},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeInvalidScope {
			t.Fatalf("want invalid_scope, got %v", perr)
		}
	})

	t.Run("GET rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/oauth2/token?grant_type=client_credentials", nil)
		_, perr := ep.Exchange(ctx, r)
		if perr == nil || perr.Code != oauth2.CodeInvalidRequest {
			t.Fatalf("want invalid_request, got %v", perr)
		}
	})

	t.Run("wrong content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(`{"grant_type":"client_credentials"}`))
		r.Header.Set("Content-Type", "application/json")
		_, perr := ep.Exchange(ctx, r)
		if perr == nil || perr.Code != oauth2.CodeInvalidRequest {
			t.Fatalf("want invalid_request, got %v", perr)
		}
	})

	t.Run("token_type parameter disabled", func(t *testing.T) {
		_, perr := ep.Exchange(ctx, postForm(url.Values{
			"grant_type":    {"client_credentials"},
			"token_type":    {"MAC"},
			"client_id":     {"app"},
			"client_secret": {testSecret},
		}))
		if perr == nil || perr.Code != oauth2.CodeInvalidRequest {
			t.Fatalf("want invalid_request, got %v", perr)
		}
	})
}

func TestExchange_PublicClientWithPKCE(t *testing.T) {
	ep, st := newTestEndpoint(t)
	verifier := "spa-verifier-spa-verifier-spa-verifier-0"
	seedCode(t, st, "spa-code", func(ac *repository.AuthorizationCode) {
		ac.ClientID = "spa"
		ac.RedirectURI = "https://spa.example/cb"
		ac.Scope = []string{"openid"}
		ac.CodeChallenge = tokens.SHA256Base64URL(verifier)
		ac.ChallengeMethod = "S256"
	})

	resp, perr := ep.Exchange(context.Background(), postForm(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"spa-code"},
		"redirect_uri":  {"https://spa.example/cb"},
		"code_verifier": {verifier},
		"client_id":     {"spa"},
	}))
	if perr != nil {
		t.Fatalf("exchange: %v", perr)
	}
	// spa no tiene refresh_token registrado: no se co-emite
	if _, ok := resp["refresh_token"]; ok {
		t.Fatalf("public client without refresh_token grant must not get one")
	}
}
