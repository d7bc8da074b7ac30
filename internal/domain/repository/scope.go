package repository

import "context"

// Scope representa un scope OAuth registrado.
type Scope struct {
	Name        string
	Description string
	DisplayName string // Nombre amigable para consent screen
}

// ScopeRepository define operaciones de lookup sobre scopes.
type ScopeRepository interface {
	// GetByName busca un scope por nombre. Retorna ErrNotFound si no existe.
	GetByName(ctx context.Context, name string) (*Scope, error)

	// List lista todos los scopes registrados.
	List(ctx context.Context) ([]Scope, error)
}
