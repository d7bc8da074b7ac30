// Package pkce implementa Proof Key for Code Exchange (RFC 7636): verificación
// pluggable de code_challenge contra code_verifier.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sort"
)

// Method verifica un code_verifier contra el code_challenge capturado en la
// autorización. La comparación DEBE ser constant-time.
type Method interface {
	Name() string
	IsChallengeVerified(codeVerifier, codeChallenge string) bool
}

// Manager es el registry name→method. Se construye en startup y es inmutable
// después: seguro para lectura concurrente sin locking.
type Manager struct {
	methods map[string]Method
}

// NewManager crea un registry con los métodos dados.
func NewManager(methods ...Method) *Manager {
	m := &Manager{methods: make(map[string]Method, len(methods))}
	for _, meth := range methods {
		m.methods[meth.Name()] = meth
	}
	return m
}

// Add registra un método. Solo durante startup.
func (m *Manager) Add(method Method) {
	m.methods[method.Name()] = method
}

// Has verifica si el método existe.
func (m *Manager) Has(name string) bool {
	_, ok := m.methods[name]
	return ok
}

// Get retorna el método o error si no está registrado.
func (m *Manager) Get(name string) (Method, error) {
	meth, ok := m.methods[name]
	if !ok {
		return nil, fmt.Errorf("pkce: unknown code_challenge_method %q", name)
	}
	return meth, nil
}

// Names retorna los nombres registrados, ordenados.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.methods))
	for n := range m.methods {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Default retorna un manager con plain y S256.
func Default() *Manager {
	return NewManager(Plain{}, S256{})
}

// Plain: igualdad constant-time entre verifier y challenge.
type Plain struct{}

func (Plain) Name() string { return "plain" }

func (Plain) IsChallengeVerified(codeVerifier, codeChallenge string) bool {
	return subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(codeChallenge)) == 1
}

// S256: challenge == base64url(SHA-256(verifier)) sin padding, constant-time.
type S256 struct{}

func (S256) Name() string { return "S256" }

func (S256) IsChallengeVerified(codeVerifier, codeChallenge string) bool {
	sum := sha256.Sum256([]byte(codeVerifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(codeChallenge)) == 1
}
