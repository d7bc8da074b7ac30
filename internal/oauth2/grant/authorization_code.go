package grant

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/pkce"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// AuthorizationCode canjea un authorization code emitido por el authorization
// endpoint (RFC 6749 §4.1 + PKCE RFC 7636). El code es de un solo uso: el
// repositorio lo consume atómicamente.
type AuthorizationCode struct {
	Codes repository.AuthorizationCodeRepository
	PKCE  *pkce.Manager
	Now   func() time.Time
}

func (g *AuthorizationCode) Name() string { return TypeAuthorizationCode }

func (g *AuthorizationCode) AssociatedResponseTypes() []string { return []string{"code"} }

func (g *AuthorizationCode) CheckRequest(r *Request) error {
	if r.Param("code") == "" {
		return oauth2.InvalidRequest("code parameter is missing")
	}
	if r.Param("redirect_uri") == "" {
		return oauth2.InvalidRequest("redirect_uri parameter is missing")
	}
	return nil
}

func (g *AuthorizationCode) PrepareResponse(_ context.Context, _ *Request, _ *Data) error {
	return nil
}

func (g *AuthorizationCode) Grant(ctx context.Context, r *Request, d *Data) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.grant.authcode"))

	now := g.now()
	ac, err := g.Codes.Consume(ctx, tokens.SHA256Base64URL(r.Param("code")))
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("authorization code not found or already used")
			return oauth2.InvalidGrant("authorization code is invalid")
		}
		return oauth2.ServerError(err)
	}
	if now.After(ac.ExpiresAt) {
		log.Warn("authorization code expired")
		return oauth2.InvalidGrant("authorization code has expired")
	}
	if ac.ClientID != d.Client.ID {
		log.Warn("authorization code client mismatch", logger.ClientID(d.Client.ID.String()))
		return oauth2.InvalidGrant("authorization code was issued to another client")
	}
	if ac.RedirectURI != r.Param("redirect_uri") {
		log.Warn("redirect_uri mismatch")
		return oauth2.InvalidGrant("redirect_uri does not match the authorization request")
	}

	if err := g.verifyPKCE(r, ac); err != nil {
		log.Warn("PKCE verification failed")
		return err
	}

	d.ResourceOwnerID = ac.ResourceOwnerID
	d.Scope = ac.Scope
	d.AvailableScope = ac.Scope
	d.IssueRefreshToken = d.Client.IsGrantTypeAllowed(TypeRefreshToken)
	if ac.Nonce != "" {
		d.Metadata = d.Metadata.With("nonce", ac.Nonce)
	}
	d.Metadata = d.Metadata.Merge(ac.Extra)
	return nil
}

func (g *AuthorizationCode) verifyPKCE(r *Request, ac *repository.AuthorizationCode) error {
	verifier := r.Param("code_verifier")

	if ac.CodeChallenge == "" {
		if d := r.Client; d != nil && d.RequirePKCE() {
			return oauth2.InvalidGrant("PKCE is required for this client")
		}
		if verifier != "" {
			return oauth2.InvalidGrant("code_verifier provided but no challenge was bound to the code")
		}
		return nil
	}

	if verifier == "" {
		return oauth2.InvalidGrant("code_verifier parameter is missing")
	}
	method, err := g.PKCE.Get(ac.ChallengeMethod)
	if err != nil {
		return oauth2.InvalidGrant("unsupported code_challenge_method")
	}
	if !method.IsChallengeVerified(verifier, ac.CodeChallenge) {
		return oauth2.InvalidGrant("code_verifier does not match the challenge")
	}
	return nil
}

func (g *AuthorizationCode) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}
