package clientauth

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
)

// secretMatches compara el secret presentado contra la metadata del client:
// bcrypt si hay client_secret_hash, constant-time contra client_secret si no.
func secretMatches(c *client.Client, presented string) bool {
	if presented == "" {
		return false
	}
	if h := c.Metadata.String(client.KeyClientSecretHash); h != "" {
		return bcrypt.CompareHashAndPassword([]byte(h), []byte(presented)) == nil
	}
	stored := c.Metadata.String(client.KeyClientSecret)
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// None: clients públicos sin credenciales. Nunca "reclama" un request durante
// el escaneo; el authenticator cae a este método solo cuando el client
// registrado declara token_endpoint_auth_method=none.
type None struct{}

func (None) Name() string                { return client.AuthMethodNone }
func (None) SchemesParameters() []string { return nil }

func (None) FindClientIDAndCredentials(_ *http.Request) (types.ClientID, *Credentials, bool) {
	return "", nil, false
}

func (None) IsClientAuthenticated(_ *client.Client, _ *Credentials, _ *http.Request) bool {
	return true
}

// SecretBasic: RFC 6749 §2.3.1, Authorization: Basic base64(id:secret).
type SecretBasic struct {
	Realm string
}

func (SecretBasic) Name() string { return client.AuthMethodSecretBasic }

func (m SecretBasic) SchemesParameters() []string {
	return []string{`Basic realm="` + m.Realm + `", charset="UTF-8"`}
}

func (SecretBasic) FindClientIDAndCredentials(r *http.Request) (types.ClientID, *Credentials, bool) {
	id, secret, ok := r.BasicAuth()
	if !ok || id == "" {
		return "", nil, false
	}
	return types.ClientID(id), &Credentials{Secret: secret}, true
}

func (SecretBasic) IsClientAuthenticated(c *client.Client, creds *Credentials, _ *http.Request) bool {
	return creds != nil && secretMatches(c, creds.Secret)
}

// SecretPost: client_id + client_secret en el body del form.
type SecretPost struct{}

func (SecretPost) Name() string                { return client.AuthMethodSecretPost }
func (SecretPost) SchemesParameters() []string { return nil }

func (SecretPost) FindClientIDAndCredentials(r *http.Request) (types.ClientID, *Credentials, bool) {
	id := r.PostFormValue("client_id")
	secret := r.PostFormValue("client_secret")
	if id == "" || secret == "" {
		return "", nil, false
	}
	return types.ClientID(id), &Credentials{Secret: secret}, true
}

func (SecretPost) IsClientAuthenticated(c *client.Client, creds *Credentials, _ *http.Request) bool {
	return creds != nil && secretMatches(c, creds.Secret)
}
