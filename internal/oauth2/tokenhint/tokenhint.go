// Package tokenhint implementa las estrategias de lookup/revocación por
// token_type_hint (RFC 7009 §2.1, RFC 7662 §2.1) compartidas por los
// endpoints de introspection y revocation.
package tokenhint

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// Info es la vista neutral de un token encontrado, sea cual sea su clase.
type Info struct {
	Active    bool
	Scope     string
	ClientID  types.ClientID
	Subject   string
	TokenType string // valor para el campo token_type de introspection
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Hint es una estrategia por clase de token.
type Hint interface {
	// Hint retorna el valor de token_type_hint que atiende.
	Hint() string

	// Find busca el token por su valor en la clase. Retorna ErrNotFound si
	// no pertenece a esta clase.
	Find(ctx context.Context, value string) (*Info, error)

	// Revoke revoca el token. Idempotente: revocar algo ya revocado o
	// inexistente no es error.
	Revoke(ctx context.Context, value string) error
}

// Manager mantiene las estrategias en orden de registro. Inmutable tras startup.
type Manager struct {
	ordered []Hint
	byName  map[string]Hint
}

// NewManager registra las estrategias en el orden dado.
func NewManager(hints ...Hint) *Manager {
	m := &Manager{byName: make(map[string]Hint, len(hints))}
	for _, h := range hints {
		m.ordered = append(m.ordered, h)
		m.byName[h.Hint()] = h
	}
	return m
}

// Ordered retorna las estrategias a probar: la del hint primero (si existe;
// un hint desconocido se ignora), después el resto en orden de registro.
func (m *Manager) Ordered(hint string) []Hint {
	first, ok := m.byName[hint]
	if !ok {
		return m.ordered
	}
	out := make([]Hint, 0, len(m.ordered))
	out = append(out, first)
	for _, h := range m.ordered {
		if h.Hint() != hint {
			out = append(out, h)
		}
	}
	return out
}

// AccessTokenHint resuelve access tokens por ID.
type AccessTokenHint struct {
	Tokens repository.AccessTokenRepository
	Now    func() time.Time
}

func (h *AccessTokenHint) Hint() string { return "access_token" }

func (h *AccessTokenHint) Find(ctx context.Context, value string) (*Info, error) {
	t, err := h.Tokens.Find(ctx, types.AccessTokenID(value))
	if err != nil {
		return nil, err
	}
	return &Info{
		Active:    t.RevokedAt == nil && !t.HasExpired(h.now()),
		Scope:     t.Scope(),
		ClientID:  t.ClientID,
		Subject:   t.ResourceOwnerID.String(),
		TokenType: t.Parameters.StringOr("token_type", "Bearer"),
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}, nil
}

func (h *AccessTokenHint) Revoke(ctx context.Context, value string) error {
	return h.Tokens.Revoke(ctx, types.AccessTokenID(value))
}

func (h *AccessTokenHint) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// RefreshTokenHint resuelve refresh tokens por hash del valor opaco.
type RefreshTokenHint struct {
	Tokens repository.RefreshTokenRepository
	Now    func() time.Time
}

func (h *RefreshTokenHint) Hint() string { return "refresh_token" }

func (h *RefreshTokenHint) Find(ctx context.Context, value string) (*Info, error) {
	rt, err := h.Tokens.GetByHash(ctx, tokens.SHA256Base64URL(value))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	return &Info{
		Active:    rt.RevokedAt == nil && now.Before(rt.ExpiresAt),
		Scope:     strings.Join(rt.Scope, " "),
		ClientID:  rt.ClientID,
		Subject:   rt.ResourceOwnerID.String(),
		TokenType: "refresh_token",
		IssuedAt:  rt.IssuedAt,
		ExpiresAt: rt.ExpiresAt,
	}, nil
}

func (h *RefreshTokenHint) Revoke(ctx context.Context, value string) error {
	rt, err := h.Tokens.GetByHash(ctx, tokens.SHA256Base64URL(value))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	return h.Tokens.Revoke(ctx, rt.ID)
}
