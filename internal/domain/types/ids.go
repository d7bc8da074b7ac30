// Package types define los identificadores opacos del dominio.
package types

import "github.com/google/uuid"

// Identificadores string-backed, comparables por valor. Se crean en emisión
// via un Generator inyectable; el core solo consume su salida.

// ClientID identifica un client OAuth2 registrado.
type ClientID string

func (id ClientID) String() string { return string(id) }
func (id ClientID) IsZero() bool   { return id == "" }

// AccessTokenID identifica un access token emitido.
type AccessTokenID string

func (id AccessTokenID) String() string { return string(id) }
func (id AccessTokenID) IsZero() bool   { return id == "" }

// ResourceOwnerID identifica al dueño del recurso (un usuario, o el propio
// client en client_credentials).
type ResourceOwnerID string

func (id ResourceOwnerID) String() string { return string(id) }
func (id ResourceOwnerID) IsZero() bool   { return id == "" }

// UserAccountID identifica una cuenta de usuario final.
type UserAccountID string

func (id UserAccountID) String() string { return string(id) }
func (id UserAccountID) IsZero() bool   { return id == "" }

// ResourceServerID identifica un resource server autorizado a introspectar.
type ResourceServerID string

func (id ResourceServerID) String() string { return string(id) }
func (id ResourceServerID) IsZero() bool   { return id == "" }

// Generator produce identificadores nuevos en emisión.
type Generator interface {
	NewAccessTokenID() AccessTokenID
	NewClientID() ClientID
}

// UUIDGenerator genera identificadores UUIDv4.
type UUIDGenerator struct{}

func (UUIDGenerator) NewAccessTokenID() AccessTokenID {
	return AccessTokenID(uuid.NewString())
}

func (UUIDGenerator) NewClientID() ClientID {
	return ClientID(uuid.NewString())
}
