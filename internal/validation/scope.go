// Package validation reúne los chequeos sintácticos compartidos por el
// registro de clients y el seed.
package validation

import "regexp"

// Sintaxis de nombre de scope:
//   - minúsculas y dígitos; ":", "_", "." y "-" solo en el interior
//   - empieza y termina en [a-z0-9], largo 1..64
//   - sin espacios, comillas ni backslash (los separadores del parámetro
//     scope y los caracteres que RFC 6749 §3.3 excluye)
//
// Válidos: openid, profile, api:read, offline_access. Inválidos: API,
// :read, read:, "two words".
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si name cumple la sintaxis de nombre de scope.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}
