package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
)

// Consent representa la decisión de un usuario sobre una solicitud de un client.
// Los campos Granted* son nil hasta que se registra una decisión.
type Consent struct {
	ClientID        types.ClientID
	UserAccountID   types.UserAccountID
	RequestedScope  []string
	RequestedClaims []string
	GrantedScope    []string
	GrantedClaims   []string
	DecidedAt       *time.Time
}

// ConsentRepository define operaciones sobre consents.
type ConsentRepository interface {
	// HasConsentBeenGiven verifica si el usuario ya otorgó (al menos) los
	// scopes solicitados a este client.
	HasConsentBeenGiven(ctx context.Context, clientID types.ClientID, userID types.UserAccountID, requestedScope []string) (bool, error)

	// Save registra o actualiza un consent.
	Save(ctx context.Context, c *Consent) error
}
