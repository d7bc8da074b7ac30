package token

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/clientauth"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
	"github.com/dropDatabas3/authkernel/internal/oauth2/scope"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
	"go.uber.org/zap"
)

// EndpointDeps contiene las dependencias del pipeline del token endpoint.
type EndpointDeps struct {
	Authenticator *clientauth.Authenticator
	Grants        *grant.Manager
	Scopes        *scope.ParameterChecker
	Types         *TypeManager
	Extensions    ExtensionChain
	AccessTokens  repository.AccessTokenRepository
	RefreshTokens repository.RefreshTokenRepository
	IDs           types.Generator

	AccessTokenTTL  time.Duration // default 1h
	RefreshTokenTTL time.Duration // default 30 días
	Now             func() time.Time
}

// Endpoint es la máquina de estados del token endpoint:
//
//	Received → ClientAuthenticated → GrantTypeResolved → Granted
//	         → TokenTypeResolved → ResponseAssembled
//
// Cualquier fallo cortocircuita a un error de protocolo en el estado alcanzado;
// nunca se devuelve un body de éxito parcial.
type Endpoint struct {
	deps EndpointDeps
}

// NewEndpoint crea el pipeline.
func NewEndpoint(d EndpointDeps) *Endpoint {
	if d.AccessTokenTTL <= 0 {
		d.AccessTokenTTL = time.Hour
	}
	if d.RefreshTokenTTL <= 0 {
		d.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Endpoint{deps: d}
}

// Exchange procesa un token request y retorna el body de éxito, o un error de
// protocolo listo para serializar.
func (e *Endpoint) Exchange(ctx context.Context, r *http.Request) (map[string]any, *oauth2.Error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.token"))

	// ── Received ──
	if err := checkForm(r); err != nil {
		return nil, err
	}

	// ── ClientAuthenticated ──
	c, _, err := e.deps.Authenticator.Authenticate(ctx, r)
	if err != nil {
		return nil, oauth2.AsError(err)
	}

	// ── GrantTypeResolved ──
	grantTypeName := strings.TrimSpace(r.PostForm.Get("grant_type"))
	if grantTypeName == "" {
		return nil, oauth2.UnsupportedGrantType("grant_type parameter is missing")
	}
	gt, err := e.deps.Grants.Get(grantTypeName)
	if err != nil {
		log.Warn("unsupported grant type", logger.GrantType(grantTypeName))
		return nil, oauth2.AsError(err)
	}
	if !c.IsGrantTypeAllowed(gt.Name()) {
		log.Warn("grant type not allowed for client",
			logger.ClientID(c.ID.String()),
			logger.GrantType(gt.Name()),
		)
		return nil, oauth2.UnauthorizedClient("the client is not allowed to use this grant type")
	}

	// ── Granted ──
	req := &grant.Request{Form: r.PostForm, Client: c}
	data := &grant.Data{Client: c, Metadata: databag.New(nil)}

	if err := gt.CheckRequest(req); err != nil {
		return nil, oauth2.AsError(err)
	}
	if err := gt.PrepareResponse(ctx, req, data); err != nil {
		return nil, oauth2.AsError(err)
	}
	if err := gt.Grant(ctx, req, data); err != nil {
		return nil, oauth2.AsError(err)
	}
	if data.Scope == nil {
		resolved, err := e.deps.Scopes.Check(ctx, c, r.PostForm.Get("scope"))
		if err != nil {
			return nil, oauth2.AsError(err)
		}
		data.Scope = resolved
	}

	// ── TokenTypeResolved ──
	tt, terr := e.deps.Types.Negotiate(strings.TrimSpace(r.PostForm.Get("token_type")))
	if terr != nil {
		return nil, oauth2.InvalidRequest(terr.Error())
	}

	// ── ResponseAssembled ──
	return e.assemble(ctx, log, data, tt)
}

func (e *Endpoint) assemble(ctx context.Context, log *zap.Logger, data *grant.Data, tt Type) (map[string]any, *oauth2.Error) {
	now := e.deps.Now()
	scopeOut := strings.Join(data.Scope, " ")

	at := &repository.AccessToken{
		ID:              e.deps.IDs.NewAccessTokenID(),
		ClientID:        data.Client.ID,
		ResourceOwnerID: data.ResourceOwnerID,
		Parameters: databag.New(map[string]any{
			"scope":      scopeOut,
			"token_type": tt.Name(),
		}),
		Metadata:  data.Metadata,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.deps.AccessTokenTTL),
	}
	if err := e.deps.AccessTokens.Create(ctx, at); err != nil {
		log.Error("failed to persist access token", logger.Err(err))
		return nil, oauth2.ServerError(err)
	}

	resp := map[string]any{
		"access_token": at.ID.String(),
		"token_type":   tt.Name(),
		"expires_in":   int64(e.deps.AccessTokenTTL.Seconds()),
	}
	if scopeOut != "" {
		resp["scope"] = scopeOut
	}
	extra, err := tt.AdditionalInformation()
	if err != nil {
		return nil, oauth2.ServerError(err)
	}
	for k, v := range extra {
		resp[k] = v
	}

	if data.IssueRefreshToken && e.deps.RefreshTokens != nil {
		rawRT, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			return nil, oauth2.ServerError(err)
		}
		input := repository.CreateRefreshTokenInput{
			ClientID:        data.Client.ID,
			ResourceOwnerID: data.ResourceOwnerID,
			TokenHash:       tokens.SHA256Base64URL(rawRT),
			Scope:           data.Scope,
			TTL:             e.deps.RefreshTokenTTL,
		}
		if data.RefreshToken != nil {
			input.RotatedFrom = &data.RefreshToken.ID
		}
		if _, err := e.deps.RefreshTokens.Create(ctx, input); err != nil {
			log.Error("failed to persist refresh token", logger.Err(err))
			return nil, oauth2.ServerError(err)
		}
		resp["refresh_token"] = rawRT
	}

	ec := &ExtensionContext{
		Client:      data.Client,
		Data:        data,
		AccessToken: at,
		TokenValue:  at.ID.String(),
		Response:    resp,
	}
	if err := e.deps.Extensions.Run(ctx, ec); err != nil {
		log.Error("token endpoint extension failed", logger.Err(err))
		return nil, oauth2.ServerError(err)
	}

	log.Info("token issued",
		logger.ClientID(data.Client.ID.String()),
		logger.UserID(data.ResourceOwnerID.String()),
		logger.TokenID(at.ID.String()),
		logger.Scope(scopeOut),
	)
	return ec.Response, nil
}

// checkForm valida método y content type (solo x-www-form-urlencoded) y
// parsea el body.
func checkForm(r *http.Request) *oauth2.Error {
	if r.Method != http.MethodPost {
		return oauth2.InvalidRequest("only POST is allowed")
	}
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/x-www-form-urlencoded" {
			return oauth2.InvalidRequest("content type must be application/x-www-form-urlencoded")
		}
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, 64<<10) // 64KB
	}
	if err := r.ParseForm(); err != nil {
		return oauth2.InvalidRequest("request body is malformed")
	}
	return nil
}
