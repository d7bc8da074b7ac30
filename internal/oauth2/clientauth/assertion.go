package clientauth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
)

// AssertionTypeJWTBearer es el client_assertion_type de RFC 7523 §2.2.
const AssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// findAssertion extrae client_id (iss/sub del JWT, sin verificar firma todavía)
// y la assertion cruda del form.
func findAssertion(r *http.Request) (types.ClientID, *Credentials, bool) {
	if r.PostFormValue("client_assertion_type") != AssertionTypeJWTBearer {
		return "", nil, false
	}
	assertion := r.PostFormValue("client_assertion")
	if assertion == "" {
		return "", nil, false
	}

	// Solo para descubrir el client_id; la firma se verifica después,
	// con el client ya cargado.
	parser := jwtv5.NewParser()
	tk, _, err := parser.ParseUnverified(assertion, jwtv5.MapClaims{})
	if err != nil {
		return "", nil, false
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", nil, false
	}
	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	if iss == "" || iss != sub {
		return "", nil, false
	}
	return types.ClientID(iss), &Credentials{Assertion: assertion}, true
}

// verifyAssertionAudience exige que aud incluya el token endpoint del servidor.
func verifyAssertionAudience(claims jwtv5.MapClaims, expected string) bool {
	if expected == "" {
		return true
	}
	auds, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range auds {
		if a == expected {
			return true
		}
	}
	return false
}

// SecretJWT: assertion HMAC firmada con el client_secret (client_secret_jwt).
type SecretJWT struct {
	// Audience esperada en la assertion (URL del token endpoint). Vacío = no se valida.
	Audience string
}

func (SecretJWT) Name() string                { return client.AuthMethodSecretJWT }
func (SecretJWT) SchemesParameters() []string { return nil }

func (SecretJWT) FindClientIDAndCredentials(r *http.Request) (types.ClientID, *Credentials, bool) {
	return findAssertion(r)
}

func (m SecretJWT) IsClientAuthenticated(c *client.Client, creds *Credentials, _ *http.Request) bool {
	if creds == nil || creds.Assertion == "" {
		return false
	}
	secret := c.Metadata.String(client.KeyClientSecret)
	if secret == "" {
		return false
	}
	tk, err := jwtv5.Parse(creds.Assertion,
		func(t *jwtv5.Token) (any, error) { return []byte(secret), nil },
		jwtv5.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tk.Valid {
		return false
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	return ok && verifyAssertionAudience(claims, m.Audience)
}

// PrivateKeyJWT: assertion EdDSA verificada contra el JWKS registrado del
// client (private_key_jwt).
type PrivateKeyJWT struct {
	Audience string
}

func (PrivateKeyJWT) Name() string                { return client.AuthMethodPrivateKeyJWT }
func (PrivateKeyJWT) SchemesParameters() []string { return nil }

func (PrivateKeyJWT) FindClientIDAndCredentials(r *http.Request) (types.ClientID, *Credentials, bool) {
	return findAssertion(r)
}

func (m PrivateKeyJWT) IsClientAuthenticated(c *client.Client, creds *Credentials, _ *http.Request) bool {
	if creds == nil || creds.Assertion == "" {
		return false
	}
	jwks := clientJWKS(c)
	if len(jwks) == 0 {
		return false
	}
	tk, err := jwtv5.Parse(creds.Assertion,
		func(t *jwtv5.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("kid header required")
			}
			raw, ok := jwks[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			pub, err := base64.RawURLEncoding.DecodeString(raw)
			if err != nil || len(pub) != ed25519.PublicKeySize {
				return nil, errors.New("malformed public key")
			}
			return ed25519.PublicKey(pub), nil
		},
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tk.Valid {
		return false
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	return ok && verifyAssertionAudience(claims, m.Audience)
}

// clientJWKS lee la metadata "jwks" como kid -> pubkey ed25519 base64url.
func clientJWKS(c *client.Client) map[string]string {
	raw, ok := c.Metadata.Get(client.KeyJWKS).(map[string]any)
	if !ok {
		if m, ok2 := c.Metadata.Get(client.KeyJWKS).(map[string]string); ok2 {
			return m
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
