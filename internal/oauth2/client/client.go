// Package client define la entidad Client y la cadena de reglas de
// validación aplicada al crear/actualizar un client.
package client

import (
	"sort"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// Metadata keys registrados (RFC 7591 vocabulary).
const (
	KeyRedirectURIs       = "redirect_uris"
	KeyGrantTypes         = "grant_types"
	KeyResponseTypes      = "response_types"
	KeyAuthMethod         = "token_endpoint_auth_method"
	KeyScope              = "scope"
	KeyScopePolicy        = "scope_policy"
	KeyDefaultScope       = "default_scope"
	KeyClientName         = "client_name"
	KeyClientSecret       = "client_secret"
	KeyClientSecretHash   = "client_secret_hash"
	KeyJWKS               = "jwks"
	KeySubjectType        = "subject_type"
	KeyTokenLifetime      = "access_token_lifetime"
	KeyIDTokenSignedAlg   = "id_token_signed_response_alg"
	KeyRequirePKCE        = "require_pkce"
	KeyAllowedSignatureAl = "token_endpoint_auth_signing_alg"
)

// Auth method names.
const (
	AuthMethodNone          = "none"
	AuthMethodSecretBasic   = "client_secret_basic"
	AuthMethodSecretPost    = "client_secret_post"
	AuthMethodSecretJWT     = "client_secret_jwt"
	AuthMethodPrivateKeyJWT = "private_key_jwt"
)

// Client es la entidad de dominio: identidad + metadata registrada + owner.
// Es propiedad exclusiva del ClientRepository externo; el core la lee y valida,
// nunca la persiste directamente.
type Client struct {
	ID       types.ClientID
	Metadata databag.Bag
	OwnerID  types.UserAccountID
}

// IsPublic se deriva del método de autenticación y la presencia de secret.
func (c *Client) IsPublic() bool {
	m := c.TokenEndpointAuthMethod()
	if m == AuthMethodNone {
		return true
	}
	if m == AuthMethodSecretBasic || m == AuthMethodSecretPost || m == AuthMethodSecretJWT {
		return !c.Metadata.Has(KeyClientSecret) && !c.Metadata.Has(KeyClientSecretHash)
	}
	return false
}

// TokenEndpointAuthMethod retorna el método registrado (default: secret_basic,
// per RFC 7591 §2).
func (c *Client) TokenEndpointAuthMethod() string {
	return c.Metadata.StringOr(KeyAuthMethod, AuthMethodSecretBasic)
}

// RedirectURIs retorna las URIs de redirección registradas.
func (c *Client) RedirectURIs() []string {
	return c.Metadata.Strings(KeyRedirectURIs)
}

// HasRedirectURI verifica matching exacto contra las URIs registradas.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, ru := range c.RedirectURIs() {
		if ru == uri {
			return true
		}
	}
	return false
}

// GrantTypes retorna los grant types permitidos. Vacío = solo authorization_code
// (default RFC 7591).
func (c *Client) GrantTypes() []string {
	if gts := c.Metadata.Strings(KeyGrantTypes); len(gts) > 0 {
		return gts
	}
	return []string{"authorization_code"}
}

// IsGrantTypeAllowed verifica si el client puede usar el grant type.
func (c *Client) IsGrantTypeAllowed(name string) bool {
	for _, g := range c.GrantTypes() {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// ResponseTypes retorna los response types permitidos. Vacío = solo "code".
func (c *Client) ResponseTypes() []string {
	if rts := c.Metadata.Strings(KeyResponseTypes); len(rts) > 0 {
		return rts
	}
	return []string{"code"}
}

// IsResponseTypeAllowed verifica contra los response types registrados.
// Un composite ("code id_token") debe estar registrado como tal; el orden de
// los tokens no importa.
func (c *Client) IsResponseTypeAllowed(responseType string) bool {
	want := normalizeResponseType(responseType)
	for _, rt := range c.ResponseTypes() {
		if normalizeResponseType(rt) == want {
			return true
		}
	}
	return false
}

func normalizeResponseType(rt string) string {
	parts := strings.Fields(rt)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// AllowedScopes retorna los scopes registrados (space-delimited en metadata).
func (c *Client) AllowedScopes() []string {
	return strings.Fields(c.Metadata.String(KeyScope))
}

// IsScopeAllowed: un scope está permitido si el client no registró ninguno
// (policy decide) o si está en la lista registrada.
func (c *Client) IsScopeAllowed(scope string) bool {
	allowed := c.AllowedScopes()
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopePolicy retorna el nombre de la policy declarada ("" si ninguna).
func (c *Client) ScopePolicy() string {
	return c.Metadata.String(KeyScopePolicy)
}

// RequirePKCE indica si el client exige code_challenge en authorization_code.
func (c *Client) RequirePKCE() bool {
	return c.Metadata.Bool(KeyRequirePKCE)
}
