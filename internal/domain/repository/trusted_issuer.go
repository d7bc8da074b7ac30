package repository

import "context"

// TrustedIssuer es un anchor estático de confianza para el grant JWT-bearer:
// qué assertion types acepta, con qué algoritmos firma, y sus claves públicas.
type TrustedIssuer struct {
	Name                  string
	AllowedAssertionTypes []string
	AllowedSignatureAlgs  []string
	// JWKS: kid -> clave pública Ed25519 en base64url raw.
	JWKS map[string]string
}

// IsAssertionTypeAllowed verifica el assertion type contra la lista permitida.
func (t *TrustedIssuer) IsAssertionTypeAllowed(assertionType string) bool {
	for _, at := range t.AllowedAssertionTypes {
		if at == assertionType {
			return true
		}
	}
	return false
}

// IsSignatureAlgAllowed verifica el alg contra la lista permitida.
func (t *TrustedIssuer) IsSignatureAlgAllowed(alg string) bool {
	for _, a := range t.AllowedSignatureAlgs {
		if a == alg {
			return true
		}
	}
	return false
}

// TrustedIssuerRepository define lookup de trusted issuers por nombre (iss).
type TrustedIssuerRepository interface {
	// Find busca por nombre. Retorna ErrNotFound si no existe.
	Find(ctx context.Context, name string) (*TrustedIssuer, error)
}
