// Package response implementa las estrategias de response type del
// authorization endpoint (code, token, id_token, none) y los response modes
// (query, fragment, form_post).
package response

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// Response modes (OAuth 2.0 Multiple Response Type Encoding Practices).
const (
	ModeQuery    = "query"
	ModeFragment = "fragment"
	ModeFormPost = "form_post"
)

// AuthorizationRequest es el carrier mutable de un authorization request en
// vuelo. Vive solo durante el request; las estrategias y extensiones lo
// enriquecen en orden.
type AuthorizationRequest struct {
	Client        *client.Client
	RedirectURI   string
	ResponseTypes []string // en el orden listado en el request
	ResponseMode  string   // resuelto; vacío hasta la negociación
	State         string
	Nonce         string

	// RequestedScope es lo pedido; Scope es lo efectivamente otorgado tras
	// política y consentimiento.
	RequestedScope []string
	Scope          []string

	// UserID es el resource owner autenticado. Su ausencia corta el flujo.
	UserID types.ResourceOwnerID

	// Authorized indica que el consentimiento está resuelto a favor.
	Authorized bool

	// IssuedAccessToken es el access token emitido por la estrategia token
	// en este mismo request (para at_hash en flujos híbridos).
	IssuedAccessToken string

	// Params son los query params crudos del request.
	Params url.Values

	// Extra acumula datos capturados por extensiones (PKCE, session_state).
	Extra databag.Bag
}

// Param retorna un query param del request original.
func (r *AuthorizationRequest) Param(name string) string {
	return r.Params.Get(name)
}

// CompositeResponseType retorna la forma canónica (orden alfabético) del
// response type compuesto, que es como se registra en el cliente.
func (r *AuthorizationRequest) CompositeResponseType() string {
	sorted := append([]string(nil), r.ResponseTypes...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// ResponseType es una estrategia de emisión del authorization endpoint.
type ResponseType interface {
	// Name es el valor individual ("code", "token", "id_token", "none").
	Name() string

	// AssociatedGrantType es el grant type que el cliente debe tener
	// permitido para usar esta estrategia.
	AssociatedGrantType() string

	// DefaultResponseMode es el mode por defecto de esta estrategia. Si
	// cualquier estrategia del compuesto exige fragment, el compuesto entero
	// va por fragment.
	DefaultResponseMode() string

	// Process emite el artefacto de la estrategia y retorna los parámetros
	// a agregar a la respuesta de autorización.
	Process(ctx context.Context, areq *AuthorizationRequest) (map[string]string, error)
}

// Manager es el registry de estrategias. Inmutable tras startup.
type Manager struct {
	byName map[string]ResponseType
}

// NewManager crea el registry.
func NewManager(strategies ...ResponseType) *Manager {
	m := &Manager{byName: make(map[string]ResponseType, len(strategies))}
	for _, s := range strategies {
		m.byName[s.Name()] = s
	}
	return m
}

// Has reporta si el nombre está registrado.
func (m *Manager) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Get retorna la estrategia o unsupported_response_type.
func (m *Manager) Get(name string) (ResponseType, error) {
	s, ok := m.byName[name]
	if !ok {
		return nil, oauth2.UnsupportedResponseType("the response type " + name + " is not supported")
	}
	return s, nil
}

// Resolve valida y retorna las estrategias del compuesto, en el orden listado.
func (m *Manager) Resolve(names []string) ([]ResponseType, error) {
	out := make([]ResponseType, 0, len(names))
	for _, n := range names {
		s, err := m.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NegotiateMode resuelve el response mode efectivo del compuesto: el default
// de la última estrategia listada, con fragment ganando si cualquiera lo
// exige. Un response_mode explícito del request se respeta salvo que degrade
// fragment a query.
func NegotiateMode(strategies []ResponseType, requested string) (string, error) {
	if len(strategies) == 0 {
		return ModeQuery, nil
	}
	mode := strategies[len(strategies)-1].DefaultResponseMode()
	for _, s := range strategies {
		if s.DefaultResponseMode() == ModeFragment {
			mode = ModeFragment
			break
		}
	}
	switch requested {
	case "":
		return mode, nil
	case ModeQuery:
		if mode == ModeFragment {
			return "", oauth2.InvalidRequest("the query response mode is not allowed for this response type")
		}
		return ModeQuery, nil
	case ModeFragment, ModeFormPost:
		return requested, nil
	default:
		return "", oauth2.InvalidRequest("unsupported response mode " + requested)
	}
}
