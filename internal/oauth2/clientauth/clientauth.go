// Package clientauth implementa la verificación pluggable de credenciales de
// client en el token endpoint (RFC 6749 §2.3, RFC 7523 para assertions).
package clientauth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
)

// Credentials son las credenciales extraídas del request por un método.
type Credentials struct {
	Secret    string // client_secret (basic/post)
	Assertion string // client_assertion JWT (secret_jwt / private_key_jwt)
}

// Method es una estrategia de autenticación de client.
type Method interface {
	Name() string

	// SchemesParameters retorna los challenge schemes que este método aporta
	// al header WWW-Authenticate (vacío si no aplica).
	SchemesParameters() []string

	// FindClientIDAndCredentials reporta si el request trae credenciales que
	// este método reconoce.
	FindClientIDAndCredentials(r *http.Request) (types.ClientID, *Credentials, bool)

	// IsClientAuthenticated verifica las credenciales contra el client cargado.
	IsClientAuthenticated(c *client.Client, creds *Credentials, r *http.Request) bool
}

// Manager es el registry ordenado de métodos. Inmutable tras startup; seguro
// para lectura concurrente.
type Manager struct {
	ordered []Method
	byName  map[string]Method
	realm   string
}

// NewManager crea el registry. El realm aparece en los challenges.
func NewManager(realm string, methods ...Method) *Manager {
	m := &Manager{byName: make(map[string]Method, len(methods)), realm: realm}
	for _, meth := range methods {
		m.Add(meth)
	}
	return m
}

// Add registra un método. Solo durante startup.
func (m *Manager) Add(method Method) {
	if _, dup := m.byName[method.Name()]; dup {
		return
	}
	m.ordered = append(m.ordered, method)
	m.byName[method.Name()] = method
}

// Get retorna el método o error si no está registrado.
func (m *Manager) Get(name string) (Method, error) {
	meth, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("clientauth: unknown method %q", name)
	}
	return meth, nil
}

// All retorna los métodos en orden de registro.
func (m *Manager) All() []Method {
	out := make([]Method, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// WWWAuthenticate arma el valor del header a partir de los schemes de todos
// los métodos registrados.
func (m *Manager) WWWAuthenticate() string {
	var schemes []string
	for _, meth := range m.ordered {
		schemes = append(schemes, meth.SchemesParameters()...)
	}
	if len(schemes) == 0 {
		schemes = []string{`Basic realm="` + m.realm + `"`}
	}
	return strings.Join(schemes, ", ")
}

// Realm retorna el realm configurado.
func (m *Manager) Realm() string { return m.realm }
