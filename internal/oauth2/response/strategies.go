package response

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/jose"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// Code emite un authorization code de un solo uso, guardado por hash.
type Code struct {
	Codes repository.AuthorizationCodeRepository
	TTL   time.Duration // default 10min
	Now   func() time.Time
}

func (Code) Name() string { return "code" }

func (Code) AssociatedGrantType() string { return grant.TypeAuthorizationCode }

func (Code) DefaultResponseMode() string { return ModeQuery }

func (s Code) Process(ctx context.Context, areq *AuthorizationRequest) (map[string]string, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, oauth2.ServerError(err)
	}
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	code := &repository.AuthorizationCode{
		CodeHash:        tokens.SHA256Base64URL(raw),
		ClientID:        areq.Client.ID,
		ResourceOwnerID: areq.UserID,
		RedirectURI:     areq.RedirectURI,
		Scope:           areq.Scope,
		Nonce:           areq.Nonce,
		CodeChallenge:   areq.Extra.String("code_challenge"),
		ChallengeMethod: areq.Extra.String("code_challenge_method"),
		Extra:           areq.Extra.Without("code_challenge", "code_challenge_method"),
		IssuedAt:        now,
		ExpiresAt:       now.Add(ttl),
	}
	if err := s.Codes.Create(ctx, code); err != nil {
		return nil, oauth2.ServerError(err)
	}
	return map[string]string{"code": raw}, nil
}

func (s Code) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Token emite un access token directo en el authorization endpoint (flujo
// implícito). Siempre responde por fragment y nunca emite refresh token.
type Token struct {
	AccessTokens repository.AccessTokenRepository
	IDs          types.Generator
	TTL          time.Duration // default 1h
	Now          func() time.Time
}

func (Token) Name() string { return "token" }

func (Token) AssociatedGrantType() string { return grant.TypeImplicit }

func (Token) DefaultResponseMode() string { return ModeFragment }

func (s Token) Process(ctx context.Context, areq *AuthorizationRequest) (map[string]string, error) {
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	scopeOut := strings.Join(areq.Scope, " ")
	at := &repository.AccessToken{
		ID:              s.IDs.NewAccessTokenID(),
		ClientID:        areq.Client.ID,
		ResourceOwnerID: areq.UserID,
		Parameters: databag.New(map[string]any{
			"scope":      scopeOut,
			"token_type": "Bearer",
		}),
		Metadata:  databag.New(nil),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.AccessTokens.Create(ctx, at); err != nil {
		return nil, oauth2.ServerError(err)
	}
	areq.IssuedAccessToken = at.ID.String()

	params := map[string]string{
		"access_token": at.ID.String(),
		"token_type":   "Bearer",
		"expires_in":   strconv.FormatInt(int64(ttl.Seconds()), 10),
	}
	if scopeOut != "" {
		params["scope"] = scopeOut
	}
	return params, nil
}

func (s Token) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// IDToken emite un id_token OIDC directo. En compuestos con token agrega
// at_hash del access token del mismo request, por eso token debe procesarse
// antes (el endpoint respeta el orden listado).
type IDToken struct {
	Signer *jose.Signer
	Users  repository.UserAccountRepository
	TTL    time.Duration // default 1h
}

func (IDToken) Name() string { return "id_token" }

func (IDToken) AssociatedGrantType() string { return grant.TypeImplicit }

func (IDToken) DefaultResponseMode() string { return ModeFragment }

func (s IDToken) Process(ctx context.Context, areq *AuthorizationRequest) (map[string]string, error) {
	if areq.Nonce == "" {
		return nil, oauth2.InvalidRequest("the nonce parameter is required for the id_token response type")
	}
	extra := map[string]any{
		"azp":   areq.Client.ID.String(),
		"nonce": areq.Nonce,
	}
	if areq.IssuedAccessToken != "" {
		extra["at_hash"] = jose.AtHash(areq.IssuedAccessToken)
	}
	if s.Users != nil {
		if user, err := s.Users.Find(ctx, types.UserAccountID(areq.UserID)); err == nil && user != nil {
			for _, sc := range areq.Scope {
				switch sc {
				case "profile":
					for _, k := range []string{"name", "given_name", "family_name", "picture", "locale"} {
						if v := user.Claims.Get(k); v != nil {
							extra[k] = v
						}
					}
				case "email":
					if v := user.Claims.Get("email"); v != nil {
						extra["email"] = v
						extra["email_verified"] = user.Claims.GetOr("email_verified", false)
					}
				}
			}
		}
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	idToken, _, err := s.Signer.IssueIDToken(areq.UserID.String(), areq.Client.ID.String(), extra, ttl)
	if err != nil {
		return nil, oauth2.ServerError(err)
	}
	return map[string]string{"id_token": idToken}, nil
}

// None registra la autorización aprobada sin emitir nada (pre-configured
// authorization). No combina con otros response types.
type None struct {
	Storage repository.AuthorizationStorage
	Now     func() time.Time
}

func (None) Name() string { return "none" }

func (None) AssociatedGrantType() string { return grant.TypeAuthorizationCode }

func (None) DefaultResponseMode() string { return ModeQuery }

func (s None) Process(ctx context.Context, areq *AuthorizationRequest) (map[string]string, error) {
	if len(areq.ResponseTypes) > 1 {
		return nil, oauth2.InvalidRequest("the none response type cannot be combined with others")
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	query := map[string]any{}
	for k := range areq.Params {
		query[k] = areq.Params.Get(k)
	}
	auth := &repository.Authorization{
		ClientID:        areq.Client.ID,
		UserAccountID:   types.UserAccountID(areq.UserID),
		Scope:           areq.Scope,
		QueryParameters: databag.New(query),
		ApprovedAt:      now,
	}
	if err := s.Storage.Save(ctx, auth); err != nil {
		return nil, oauth2.ServerError(err)
	}
	return map[string]string{}, nil
}
