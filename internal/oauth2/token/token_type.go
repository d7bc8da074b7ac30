// Package token implementa la abstracción de token types (Bearer, MAC) y el
// pipeline del token endpoint.
package token

import (
	"fmt"

	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// Type es la presentación scheme-specific de un access token.
type Type interface {
	// Name es el scheme ("Bearer", "MAC") que viaja en token_type.
	Name() string

	// AdditionalInformation retorna campos extra de respuesta propios del
	// scheme, generados por emisión (ej: mac_key).
	AdditionalInformation() (map[string]any, error)
}

// Bearer: RFC 6750, sin información adicional.
type Bearer struct{}

func (Bearer) Name() string { return "Bearer" }

func (Bearer) AdditionalInformation() (map[string]any, error) { return nil, nil }

// MAC: draft-ietf-oauth-v2-http-mac. Cada emisión recibe una mac_key fresca.
type MAC struct {
	Algorithm string // ej: "hmac-sha-256"
}

func (MAC) Name() string { return "MAC" }

func (m MAC) AdditionalInformation() (map[string]any, error) {
	key, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	alg := m.Algorithm
	if alg == "" {
		alg = "hmac-sha-256"
	}
	return map[string]any{
		"mac_key":       key,
		"mac_algorithm": alg,
	}, nil
}

// TypeManager es el registry de schemes con un default. Inmutable tras startup.
type TypeManager struct {
	byName      map[string]Type
	defaultName string
	// AllowRequestParameter habilita el parámetro token_type del request.
	AllowRequestParameter bool
}

// NewTypeManager crea el registry; el primer type es el default.
func NewTypeManager(defaultType Type, others ...Type) *TypeManager {
	m := &TypeManager{
		byName:      map[string]Type{defaultType.Name(): defaultType},
		defaultName: defaultType.Name(),
	}
	for _, t := range others {
		m.byName[t.Name()] = t
	}
	return m
}

// Default retorna el scheme default.
func (m *TypeManager) Default() Type { return m.byName[m.defaultName] }

// Get retorna un scheme registrado.
func (m *TypeManager) Get(name string) (Type, error) {
	t, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("token: unsupported token type %q", name)
	}
	return t, nil
}

// Negotiate resuelve el scheme efectivo: el default, salvo que el request pida
// explícitamente otro soportado y el servidor permita el parámetro.
func (m *TypeManager) Negotiate(requested string) (Type, error) {
	if requested == "" {
		return m.Default(), nil
	}
	if !m.AllowRequestParameter {
		return nil, fmt.Errorf("token: the token_type parameter is not allowed")
	}
	return m.Get(requested)
}
