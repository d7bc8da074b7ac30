// Package scope implementa la negociación de scope: policies por client
// (none/default/error) y validación de parámetros contra el ScopeRepository.
package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
)

// Policy names.
const (
	PolicyNone    = "none"
	PolicyDefault = "default"
	PolicyError   = "error"
)

// Policy decide qué scope aplica cuando el request lo omite.
type Policy interface {
	Name() string
	// Apply retorna el scope efectivo para el client dado un request sin scope.
	Apply(ctx context.Context, c *client.Client) ([]string, error)
}

// PolicyManager es el registry de policies. Inmutable tras startup.
type PolicyManager struct {
	policies map[string]Policy
	fallback string
}

// NewPolicyManager crea el registry; fallback es la policy aplicada a clients
// que no declaran scope_policy.
func NewPolicyManager(fallback string, policies ...Policy) *PolicyManager {
	m := &PolicyManager{policies: make(map[string]Policy, len(policies)), fallback: fallback}
	for _, p := range policies {
		m.policies[p.Name()] = p
	}
	return m
}

// Add registra una policy. Solo durante startup.
func (m *PolicyManager) Add(p Policy) { m.policies[p.Name()] = p }

// Get retorna la policy o error si no existe.
func (m *PolicyManager) Get(name string) (Policy, error) {
	p, ok := m.policies[name]
	if !ok {
		return nil, fmt.Errorf("scope: unknown policy %q", name)
	}
	return p, nil
}

// ForClient resuelve la policy efectiva para un client.
func (m *PolicyManager) ForClient(c *client.Client) (Policy, error) {
	name := c.ScopePolicy()
	if name == "" {
		name = m.fallback
	}
	return m.Get(name)
}

// NonePolicy: sin scope → scope vacío.
type NonePolicy struct{}

func (NonePolicy) Name() string { return PolicyNone }

func (NonePolicy) Apply(_ context.Context, _ *client.Client) ([]string, error) {
	return nil, nil
}

// DefaultPolicy: sin scope → default del client o del servidor.
type DefaultPolicy struct {
	ServerDefault []string
}

func (DefaultPolicy) Name() string { return PolicyDefault }

func (p DefaultPolicy) Apply(_ context.Context, c *client.Client) ([]string, error) {
	if ds := c.Metadata.String(client.KeyDefaultScope); ds != "" {
		return strings.Fields(ds), nil
	}
	return p.ServerDefault, nil
}

// ErrorPolicy: sin scope → invalid_scope.
type ErrorPolicy struct{}

func (ErrorPolicy) Name() string { return PolicyError }

func (ErrorPolicy) Apply(_ context.Context, _ *client.Client) ([]string, error) {
	return nil, oauth2.InvalidScope("scope parameter is required")
}

// ParameterChecker valida el parámetro scope de un request durante el
// procesamiento de authorization/token.
type ParameterChecker struct {
	Policies *PolicyManager
	Scopes   repository.ScopeRepository
}

// Check resuelve el scope efectivo:
//   - request sin scope: aplica la policy del client;
//   - request con scope: cada scope debe existir en el repositorio y estar
//     permitido para el client, si no invalid_scope.
func (sc *ParameterChecker) Check(ctx context.Context, c *client.Client, requested string) ([]string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		pol, err := sc.Policies.ForClient(c)
		if err != nil {
			return nil, oauth2.ServerError(err)
		}
		return pol.Apply(ctx, c)
	}

	scopes := strings.Fields(requested)
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if seen[s] {
			return nil, oauth2.InvalidScope("scope is listed twice: " + s)
		}
		seen[s] = true

		if sc.Scopes != nil {
			if _, err := sc.Scopes.GetByName(ctx, s); err != nil {
				if repository.IsNotFound(err) {
					return nil, oauth2.InvalidScope("unknown scope: " + s)
				}
				return nil, oauth2.ServerError(err)
			}
		}
		if !c.IsScopeAllowed(s) {
			return nil, oauth2.InvalidScope("scope not allowed for this client: " + s)
		}
	}
	return scopes, nil
}

// IsSubset verifica granted ⊆ original (para refresh_token).
func IsSubset(granted, original []string) bool {
	set := make(map[string]bool, len(original))
	for _, s := range original {
		set[s] = true
	}
	for _, s := range granted {
		if !set[s] {
			return false
		}
	}
	return true
}
