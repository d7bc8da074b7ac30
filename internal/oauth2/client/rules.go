package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/validation"
)

// Rule valida una faceta de la metadata de un client antes de persistir.
type Rule interface {
	Name() string
	Validate(ctx context.Context, c *Client) error
}

// RuleChain aplica las reglas en orden; el primer error aborta.
type RuleChain []Rule

func (rc RuleChain) Validate(ctx context.Context, c *Client) error {
	for _, r := range rc {
		if err := r.Validate(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRules arma la cadena estándar. associations mapea response type →
// grant type asociado, para el chequeo de consistencia.
func DefaultRules(associations map[string]string) RuleChain {
	return RuleChain{
		RedirectURIRule{},
		GrantResponseRule{Associations: associations},
		AuthMethodRule{},
		ScopeSyntaxRule{},
		SecretRule{},
	}
}

// RedirectURIRule: los flujos de redirección exigen URIs absolutas, sin
// fragment. Obligatorias si el client usa authorization_code o implicit.
type RedirectURIRule struct{}

func (RedirectURIRule) Name() string { return "redirect_uris" }

func (RedirectURIRule) Validate(_ context.Context, c *Client) error {
	uris := c.RedirectURIs()
	needsRedirect := c.IsGrantTypeAllowed("authorization_code") || c.IsGrantTypeAllowed("implicit")
	if len(uris) == 0 {
		if needsRedirect {
			return oauth2.InvalidRequest("redirect_uris are required for redirect-based grant types")
		}
		return nil
	}
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return oauth2.InvalidRequest("redirect_uri " + raw + " must be an absolute URI")
		}
		if u.Fragment != "" || strings.Contains(raw, "#") {
			return oauth2.InvalidRequest("redirect_uri " + raw + " must not contain a fragment")
		}
	}
	return nil
}

// GrantResponseRule: cada response type registrado debe tener su grant type
// asociado también registrado.
type GrantResponseRule struct {
	// Associations mapea response type individual → grant type requerido.
	Associations map[string]string
}

func (GrantResponseRule) Name() string { return "grant_response_consistency" }

func (r GrantResponseRule) Validate(_ context.Context, c *Client) error {
	for _, composite := range c.ResponseTypes() {
		for _, rt := range strings.Fields(composite) {
			gt, known := r.Associations[rt]
			if !known {
				return oauth2.InvalidRequest("unknown response type " + rt)
			}
			if !c.IsGrantTypeAllowed(gt) {
				return oauth2.InvalidRequest("response type " + rt + " requires the " + gt + " grant type")
			}
		}
	}
	return nil
}

// AuthMethodRule: el método registrado debe ser conocido y coherente con las
// credenciales presentes.
type AuthMethodRule struct{}

func (AuthMethodRule) Name() string { return "token_endpoint_auth_method" }

func (AuthMethodRule) Validate(_ context.Context, c *Client) error {
	m := c.TokenEndpointAuthMethod()
	switch m {
	case AuthMethodNone:
		if c.Metadata.Has(KeyClientSecret) || c.Metadata.Has(KeyClientSecretHash) {
			return oauth2.InvalidRequest("a client with auth method none must not have a secret")
		}
	case AuthMethodSecretBasic, AuthMethodSecretPost, AuthMethodSecretJWT:
		if !c.Metadata.Has(KeyClientSecret) && !c.Metadata.Has(KeyClientSecretHash) {
			return oauth2.InvalidRequest("auth method " + m + " requires a client secret")
		}
	case AuthMethodPrivateKeyJWT:
		if !c.Metadata.Has(KeyJWKS) {
			return oauth2.InvalidRequest("auth method private_key_jwt requires a jwks")
		}
	default:
		return oauth2.InvalidRequest("unknown token_endpoint_auth_method " + m)
	}
	return nil
}

// ScopeSyntaxRule: los scopes registrados deben cumplir la sintaxis de nombre.
type ScopeSyntaxRule struct{}

func (ScopeSyntaxRule) Name() string { return "scope_syntax" }

func (ScopeSyntaxRule) Validate(_ context.Context, c *Client) error {
	for _, s := range c.AllowedScopes() {
		if !validation.ValidScopeName(s) {
			return oauth2.InvalidRequest("invalid scope name " + s)
		}
	}
	if def := c.Metadata.String(KeyDefaultScope); def != "" {
		for _, s := range strings.Fields(def) {
			if !validation.ValidScopeName(s) {
				return oauth2.InvalidRequest("invalid default scope name " + s)
			}
		}
	}
	return nil
}

// SecretRule: secrets en claro deben tener entropía mínima; se prefiere
// registrar solo el hash.
type SecretRule struct{}

func (SecretRule) Name() string { return "client_secret" }

func (SecretRule) Validate(_ context.Context, c *Client) error {
	if secret := c.Metadata.String(KeyClientSecret); secret != "" && len(secret) < 32 {
		return oauth2.InvalidRequest("client_secret must be at least 32 characters")
	}
	return nil
}
