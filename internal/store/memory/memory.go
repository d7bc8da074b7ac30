// Package memory implementa todos los repositorios del dominio en memoria.
// Respaldo para desarrollo y tests; el comportamiento (sentinel errors,
// idempotencia de revocación, consumo atómico de codes) es el contrato de
// referencia para los demás backends.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/google/uuid"
)

// Store agrupa todos los repositorios en memoria bajo un solo lock.
type Store struct {
	mu sync.RWMutex

	clients        map[types.ClientID]*client.Client
	accessTokens   map[types.AccessTokenID]*repository.AccessToken
	refreshTokens  map[string]*repository.RefreshToken // por ID
	refreshByHash  map[string]string                   // hash -> ID
	authCodes      map[string]*repository.AuthorizationCode
	users          map[types.UserAccountID]*repository.UserAccount
	passwords      map[string]string // username -> bcrypt hash
	usersByName    map[string]types.UserAccountID
	scopes         map[string]*repository.Scope
	consents       map[string]*repository.Consent // clientID|userID
	resourceSrvs   map[types.ResourceServerID]*repository.ResourceServer
	trustedIssuers map[string]*repository.TrustedIssuer
	authorizations []*repository.Authorization

	now func() time.Time
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		clients:        make(map[types.ClientID]*client.Client),
		accessTokens:   make(map[types.AccessTokenID]*repository.AccessToken),
		refreshTokens:  make(map[string]*repository.RefreshToken),
		refreshByHash:  make(map[string]string),
		authCodes:      make(map[string]*repository.AuthorizationCode),
		users:          make(map[types.UserAccountID]*repository.UserAccount),
		passwords:      make(map[string]string),
		usersByName:    make(map[string]types.UserAccountID),
		scopes:         make(map[string]*repository.Scope),
		consents:       make(map[string]*repository.Consent),
		resourceSrvs:   make(map[types.ResourceServerID]*repository.ResourceServer),
		trustedIssuers: make(map[string]*repository.TrustedIssuer),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Clients retorna la vista ClientRepository.
func (s *Store) Clients() repository.ClientRepository { return (*clientRepo)(s) }

// AccessTokens retorna la vista AccessTokenRepository.
func (s *Store) AccessTokens() repository.AccessTokenRepository { return (*accessTokenRepo)(s) }

// RefreshTokens retorna la vista RefreshTokenRepository.
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return (*refreshTokenRepo)(s) }

// AuthorizationCodes retorna la vista AuthorizationCodeRepository.
func (s *Store) AuthorizationCodes() repository.AuthorizationCodeRepository {
	return (*authCodeRepo)(s)
}

// Users retorna la vista UserAccountRepository.
func (s *Store) Users() repository.UserAccountRepository { return (*userRepo)(s) }

// Scopes retorna la vista ScopeRepository.
func (s *Store) Scopes() repository.ScopeRepository { return (*scopeRepo)(s) }

// Consents retorna la vista ConsentRepository.
func (s *Store) Consents() repository.ConsentRepository { return (*consentRepo)(s) }

// ResourceServers retorna la vista ResourceServerRepository.
func (s *Store) ResourceServers() repository.ResourceServerRepository {
	return (*resourceServerRepo)(s)
}

// TrustedIssuers retorna la vista TrustedIssuerRepository.
func (s *Store) TrustedIssuers() repository.TrustedIssuerRepository { return (*trustedIssuerRepo)(s) }

// Authorizations retorna la vista AuthorizationStorage.
func (s *Store) Authorizations() repository.AuthorizationStorage { return (*authorizationRepo)(s) }

// ── clients ──

type clientRepo Store

func (r *clientRepo) Find(_ context.Context, id types.ClientID) (*client.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *clientRepo) Create(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c.ID]; exists {
		return repository.ErrConflict
	}
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func (r *clientRepo) Save(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[c.ID]; !exists {
		return repository.ErrNotFound
	}
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func (r *clientRepo) Delete(_ context.Context, id types.ClientID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[id]; !exists {
		return repository.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

// ── access tokens ──

type accessTokenRepo Store

func (r *accessTokenRepo) Find(_ context.Context, id types.AccessTokenID) (*repository.AccessToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.accessTokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *accessTokenRepo) Create(_ context.Context, t *repository.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accessTokens[t.ID]; exists {
		return repository.ErrConflict
	}
	cp := *t
	r.accessTokens[t.ID] = &cp
	return nil
}

func (r *accessTokenRepo) Save(_ context.Context, t *repository.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accessTokens[t.ID]; !exists {
		return repository.ErrNotFound
	}
	cp := *t
	r.accessTokens[t.ID] = &cp
	return nil
}

func (r *accessTokenRepo) Revoke(_ context.Context, id types.AccessTokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.accessTokens[id]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := r.now()
	t.RevokedAt = &now
	return nil
}

// ── refresh tokens ──

type refreshTokenRepo Store

func (r *refreshTokenRepo) Create(_ context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	rt := &repository.RefreshToken{
		ID:              uuid.NewString(),
		ClientID:        input.ClientID,
		ResourceOwnerID: input.ResourceOwnerID,
		TokenHash:       input.TokenHash,
		Scope:           append([]string(nil), input.Scope...),
		IssuedAt:        now,
		ExpiresAt:       now.Add(input.TTL),
		RotatedFrom:     input.RotatedFrom,
	}
	r.refreshTokens[rt.ID] = rt
	r.refreshByHash[rt.TokenHash] = rt.ID
	return rt.ID, nil
}

func (r *refreshTokenRepo) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.refreshByHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.refreshTokens[id]
	return &cp, nil
}

func (r *refreshTokenRepo) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.refreshTokens[tokenID]
	if !ok || rt.RevokedAt != nil {
		return nil
	}
	now := r.now()
	rt.RevokedAt = &now
	return nil
}

// ── authorization codes ──

type authCodeRepo Store

func (r *authCodeRepo) Create(_ context.Context, code *repository.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.authCodes[code.CodeHash]; exists {
		return repository.ErrConflict
	}
	cp := *code
	r.authCodes[code.CodeHash] = &cp
	return nil
}

func (r *authCodeRepo) Consume(_ context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.authCodes[codeHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.authCodes, codeHash)
	cp := *code
	return &cp, nil
}

// ── users ──

type userRepo Store

func (r *userRepo) Find(_ context.Context, id types.UserAccountID) (*repository.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) FindByCredentials(_ context.Context, username, password string) (*repository.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usersByName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	hash := r.passwords[username]
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, repository.ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

// AddUser registra una cuenta con password (solo seeding/tests).
func (s *Store) AddUser(u *repository.UserAccount, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	s.usersByName[u.Username] = u.ID
	s.passwords[u.Username] = string(hash)
	return nil
}

// ── scopes ──

type scopeRepo Store

func (r *scopeRepo) GetByName(_ context.Context, name string) (*repository.Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.scopes[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (r *scopeRepo) List(_ context.Context) ([]repository.Scope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Scope, 0, len(r.scopes))
	for _, sc := range r.scopes {
		out = append(out, *sc)
	}
	return out, nil
}

// AddScope registra un scope (seeding).
func (s *Store) AddScope(sc repository.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[sc.Name] = &sc
}

// ── consents ──

type consentRepo Store

func consentKey(clientID types.ClientID, userID types.UserAccountID) string {
	return clientID.String() + "|" + userID.String()
}

func (r *consentRepo) HasConsentBeenGiven(_ context.Context, clientID types.ClientID, userID types.UserAccountID, requestedScope []string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consents[consentKey(clientID, userID)]
	if !ok || c.DecidedAt == nil {
		return false, nil
	}
	granted := make(map[string]struct{}, len(c.GrantedScope))
	for _, s := range c.GrantedScope {
		granted[s] = struct{}{}
	}
	for _, s := range requestedScope {
		if _, ok := granted[s]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *consentRepo) Save(_ context.Context, c *repository.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.consents[consentKey(c.ClientID, c.UserAccountID)] = &cp
	return nil
}

// ── resource servers ──

type resourceServerRepo Store

func (r *resourceServerRepo) Find(_ context.Context, id types.ResourceServerID) (*repository.ResourceServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.resourceSrvs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rs
	return &cp, nil
}

// AddResourceServer registra un resource server (seeding).
func (s *Store) AddResourceServer(rs *repository.ResourceServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rs
	s.resourceSrvs[rs.ID] = &cp
}

// ── trusted issuers ──

type trustedIssuerRepo Store

func (r *trustedIssuerRepo) Find(_ context.Context, name string) (*repository.TrustedIssuer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ti, ok := r.trustedIssuers[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ti
	return &cp, nil
}

// AddTrustedIssuer registra un trusted issuer (seeding).
func (s *Store) AddTrustedIssuer(ti *repository.TrustedIssuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ti
	s.trustedIssuers[ti.Name] = &cp
}

// ── authorizations (response_type=none) ──

type authorizationRepo Store

func (r *authorizationRepo) Save(_ context.Context, a *repository.Authorization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.authorizations = append(r.authorizations, &cp)
	return nil
}
