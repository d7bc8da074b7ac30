package client

import (
	"context"
	"strings"
	"testing"

	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

var testAssociations = map[string]string{
	"code":     "authorization_code",
	"token":    "implicit",
	"id_token": "implicit",
	"none":     "authorization_code",
}

func testClient(metadata map[string]any) *Client {
	return &Client{ID: "app", Metadata: databag.New(metadata)}
}

func TestDefaultRules_ValidClient(t *testing.T) {
	rules := DefaultRules(testAssociations)
	c := testClient(map[string]any{
		KeyAuthMethod:    AuthMethodSecretBasic,
		KeyClientSecret:  strings.Repeat("s", 32),
		KeyRedirectURIs:  []any{"https://app.example/cb"},
		KeyGrantTypes:    []any{"authorization_code", "implicit", "refresh_token"},
		KeyResponseTypes: []any{"code", "token", "code id_token"},
		KeyScope:         "openid profile api",
		KeyDefaultScope:  "openid",
	})
	if err := rules.Validate(context.Background(), c); err != nil {
		t.Fatalf("valid client rejected: %v", err)
	}
}

func TestRedirectURIRule(t *testing.T) {
	rule := RedirectURIRule{}
	ctx := context.Background()

	cases := map[string]struct {
		metadata map[string]any
		wantErr  bool
	}{
		"missing for code grant": {
			metadata: map[string]any{KeyGrantTypes: []any{"authorization_code"}},
			wantErr:  true,
		},
		"missing ok for client_credentials": {
			metadata: map[string]any{KeyGrantTypes: []any{"client_credentials"}},
		},
		"relative uri": {
			metadata: map[string]any{
				KeyGrantTypes:   []any{"authorization_code"},
				KeyRedirectURIs: []any{"/callback"},
			},
			wantErr: true,
		},
		"fragment in uri": {
			metadata: map[string]any{
				KeyGrantTypes:   []any{"authorization_code"},
				KeyRedirectURIs: []any{"https://app.example/cb#frag"},
			},
			wantErr: true,
		},
		"absolute https uri": {
			metadata: map[string]any{
				KeyGrantTypes:   []any{"authorization_code"},
				KeyRedirectURIs: []any{"https://app.example/cb"},
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := rule.Validate(ctx, testClient(tc.metadata))
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestGrantResponseRule(t *testing.T) {
	rule := GrantResponseRule{Associations: testAssociations}
	ctx := context.Background()

	t.Run("response type without its grant", func(t *testing.T) {
		c := testClient(map[string]any{
			KeyGrantTypes:    []any{"authorization_code"},
			KeyResponseTypes: []any{"token"},
		})
		if err := rule.Validate(ctx, c); err == nil {
			t.Fatal("token without implicit grant must be rejected")
		}
	})

	t.Run("unknown response type", func(t *testing.T) {
		c := testClient(map[string]any{
			KeyGrantTypes:    []any{"authorization_code"},
			KeyResponseTypes: []any{"telegram"},
		})
		if err := rule.Validate(ctx, c); err == nil {
			t.Fatal("unknown response type must be rejected")
		}
	})

	t.Run("composite checks every part", func(t *testing.T) {
		c := testClient(map[string]any{
			KeyGrantTypes:    []any{"authorization_code"},
			KeyResponseTypes: []any{"code id_token"},
		})
		if err := rule.Validate(ctx, c); err == nil {
			t.Fatal("id_token part requires the implicit grant")
		}
	})

	t.Run("consistent registration", func(t *testing.T) {
		c := testClient(map[string]any{
			KeyGrantTypes:    []any{"authorization_code", "implicit"},
			KeyResponseTypes: []any{"code", "code id_token", "none"},
		})
		if err := rule.Validate(ctx, c); err != nil {
			t.Fatalf("consistent client rejected: %v", err)
		}
	})
}

func TestAuthMethodRule(t *testing.T) {
	rule := AuthMethodRule{}
	ctx := context.Background()

	cases := map[string]struct {
		metadata map[string]any
		wantErr  bool
	}{
		"none with secret": {
			metadata: map[string]any{
				KeyAuthMethod:   AuthMethodNone,
				KeyClientSecret: strings.Repeat("s", 32),
			},
			wantErr: true,
		},
		"none without secret": {
			metadata: map[string]any{KeyAuthMethod: AuthMethodNone},
		},
		"basic without secret": {
			metadata: map[string]any{KeyAuthMethod: AuthMethodSecretBasic},
			wantErr:  true,
		},
		"basic with hash only": {
			metadata: map[string]any{
				KeyAuthMethod:       AuthMethodSecretBasic,
				KeyClientSecretHash: "$2a$10$fake",
			},
		},
		"private_key_jwt without jwks": {
			metadata: map[string]any{KeyAuthMethod: AuthMethodPrivateKeyJWT},
			wantErr:  true,
		},
		"unknown method": {
			metadata: map[string]any{KeyAuthMethod: "carrier-pigeon"},
			wantErr:  true,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := rule.Validate(ctx, testClient(tc.metadata))
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestScopeSyntaxRule(t *testing.T) {
	rule := ScopeSyntaxRule{}
	ctx := context.Background()

	ok := testClient(map[string]any{KeyScope: "openid profile api:read"})
	if err := rule.Validate(ctx, ok); err != nil {
		t.Fatalf("valid scopes rejected: %v", err)
	}

	bad := testClient(map[string]any{KeyScope: `openid "quoted`})
	if err := rule.Validate(ctx, bad); err == nil {
		t.Fatal("scope with forbidden characters must be rejected")
	}

	badDefault := testClient(map[string]any{KeyDefaultScope: "op\\enid"})
	if err := rule.Validate(ctx, badDefault); err == nil {
		t.Fatal("invalid default scope must be rejected")
	}
}

func TestSecretRule(t *testing.T) {
	rule := SecretRule{}
	ctx := context.Background()

	if err := rule.Validate(ctx, testClient(map[string]any{
		KeyClientSecret: "too-short",
	})); err == nil {
		t.Fatal("short plaintext secret must be rejected")
	}

	// Solo el hash registrado: la regla no aplica.
	if err := rule.Validate(ctx, testClient(map[string]any{
		KeyClientSecretHash: "$2a$10$fake",
	})); err != nil {
		t.Fatalf("hash-only client rejected: %v", err)
	}
}
