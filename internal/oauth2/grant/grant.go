// Package grant implementa las estrategias de emisión de tokens del token
// endpoint (RFC 6749 §4, RFC 7523) y su registry.
package grant

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// Grant type names.
const (
	TypeAuthorizationCode = "authorization_code"
	TypeClientCredentials = "client_credentials"
	TypeRefreshToken      = "refresh_token"
	TypePassword          = "password"
	TypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	TypeImplicit          = "implicit"
)

// Request es la vista del token request que ven las estrategias: el form
// parseado y el client ya autenticado.
type Request struct {
	Form   url.Values
	Client *client.Client
}

// Param retorna un parámetro del form, sin espacios.
func (r *Request) Param(name string) string {
	return strings.TrimSpace(r.Form.Get(name))
}

// Data es el carrier mutable de una invocación del pipeline: la estrategia
// resuelve el resource owner y aporta datos; se descarta tras ensamblar la
// respuesta. Nunca se comparte entre requests concurrentes. Metadata es
// copy-on-write: cada paso reasigna d.Metadata = d.Metadata.With(...).
type Data struct {
	Client          *client.Client
	ResourceOwnerID types.ResourceOwnerID
	Scope           []string
	Metadata        databag.Bag

	// IssueRefreshToken indica si este grant co-emite un refresh token.
	IssueRefreshToken bool
	// RefreshToken es el token cargado por el grant refresh_token (rotación).
	RefreshToken *repository.RefreshToken
	// AvailableScope limita el scope solicitable (scope del code o del
	// refresh token original). Vacío = sin límite adicional.
	AvailableScope []string
}

// GrantType es una estrategia de emisión.
type GrantType interface {
	Name() string

	// AssociatedResponseTypes lista los response types del flujo híbrido
	// asociados a este grant (cross-check en el authorization endpoint).
	AssociatedResponseTypes() []string

	// CheckRequest valida sintaxis (parámetros requeridos); falla rápido con
	// invalid_request.
	CheckRequest(r *Request) error

	// PrepareResponse es el hook pre-emisión (ej: cargar el refresh token y
	// validar subset de scope).
	PrepareResponse(ctx context.Context, r *Request, d *Data) error

	// Grant muta d con el resource owner resuelto y claims específicos, o
	// levanta un error de protocolo.
	Grant(ctx context.Context, r *Request, d *Data) error
}

// Manager es el registry name→grant type. Inmutable tras startup; seguro para
// lectura concurrente sin locking.
type Manager struct {
	ordered []GrantType
	byName  map[string]GrantType
}

// NewManager crea el registry con las estrategias dadas.
func NewManager(grantTypes ...GrantType) *Manager {
	m := &Manager{byName: make(map[string]GrantType, len(grantTypes))}
	for _, gt := range grantTypes {
		m.Add(gt)
	}
	return m
}

// Add registra una estrategia. Solo durante startup.
func (m *Manager) Add(gt GrantType) {
	if _, dup := m.byName[gt.Name()]; dup {
		return
	}
	m.ordered = append(m.ordered, gt)
	m.byName[gt.Name()] = gt
}

// Has verifica si el grant type está registrado.
func (m *Manager) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Get retorna la estrategia o error de protocolo si no está registrada.
func (m *Manager) Get(name string) (GrantType, error) {
	gt, ok := m.byName[name]
	if !ok {
		return nil, oauth2.UnsupportedGrantType("grant type not supported: " + name)
	}
	return gt, nil
}

// All retorna las estrategias en orden de registro.
func (m *Manager) All() []GrantType {
	out := make([]GrantType, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// Names retorna los nombres registrados en orden.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.ordered))
	for _, gt := range m.ordered {
		out = append(out, gt.Name())
	}
	return out
}
