// Package authorize implementa el pipeline del authorization endpoint:
// validación del request, gate de consentimiento, procesamiento ordenado de
// response types y construcción de la redirección final.
package authorize

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/oauth2/response"
	"github.com/dropDatabas3/authkernel/internal/oauth2/scope"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Deps contiene las dependencias del endpoint.
type Deps struct {
	Clients    repository.ClientRepository
	Consents   repository.ConsentRepository
	Responses  *response.Manager
	Scopes     *scope.ParameterChecker
	Extensions []Extension
}

// Endpoint procesa authorization requests en dos fases: ParseRequest valida y
// construye el carrier; Process (con el usuario ya autenticado) ejecuta las
// estrategias y arma la respuesta.
type Endpoint struct {
	deps Deps
}

// NewEndpoint crea el pipeline.
func NewEndpoint(d Deps) *Endpoint {
	return &Endpoint{deps: d}
}

// Result es la respuesta de autorización lista para entregar: una URL de
// redirección (query o fragment) o, en form_post, los params para renderizar
// el auto-submit form.
type Result struct {
	RedirectURI string
	Mode        string
	Params      map[string]string
}

// ParseRequest valida el authorization request y construye el carrier.
// Errores previos a validar la redirect URI son directos (nunca se redirige a
// una URI no verificada); a partir de ahí son redirigibles vía ErrorResult.
func (e *Endpoint) ParseRequest(ctx context.Context, r *http.Request) (*response.AuthorizationRequest, *oauth2.Error) {
	// r.Form cubre las dos formas del endpoint: query string en GET y body
	// form-encoded en POST.
	if err := r.ParseForm(); err != nil {
		return nil, oauth2.InvalidRequest("request parameters are malformed")
	}
	q := r.Form

	clientID := strings.TrimSpace(q.Get("client_id"))
	if clientID == "" {
		return nil, oauth2.InvalidRequest("client_id parameter is missing")
	}
	c, err := e.deps.Clients.Find(ctx, types.ClientID(clientID))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, oauth2.InvalidRequest("unknown client")
		}
		return nil, oauth2.ServerError(err)
	}

	redirectURI, perr := resolveRedirectURI(c.RedirectURIs(), q.Get("redirect_uri"))
	if perr != nil {
		return nil, perr
	}

	areq := &response.AuthorizationRequest{
		Client:      c,
		RedirectURI: redirectURI,
		State:       q.Get("state"),
		Nonce:       q.Get("nonce"),
		Params:      q,
		Extra:       databag.New(nil),
	}

	rawRT := strings.TrimSpace(q.Get("response_type"))
	if rawRT == "" {
		return areq, oauth2.InvalidRequest("response_type parameter is missing")
	}
	areq.ResponseTypes = strings.Fields(rawRT)

	strategies, rerr := e.deps.Responses.Resolve(areq.ResponseTypes)
	if rerr != nil {
		return areq, oauth2.AsError(rerr)
	}
	if !c.IsResponseTypeAllowed(areq.CompositeResponseType()) {
		return areq, oauth2.UnauthorizedClient("the client is not allowed to use this response type")
	}
	for _, s := range strategies {
		if !c.IsGrantTypeAllowed(s.AssociatedGrantType()) {
			return areq, oauth2.UnauthorizedClient("the client is not allowed to use the grant type associated with " + s.Name())
		}
	}

	mode, merr := response.NegotiateMode(strategies, q.Get("response_mode"))
	if merr != nil {
		return areq, oauth2.AsError(merr)
	}
	areq.ResponseMode = mode

	granted, serr := e.deps.Scopes.Check(ctx, c, q.Get("scope"))
	if serr != nil {
		return areq, oauth2.AsError(serr)
	}
	areq.RequestedScope = granted

	for _, ext := range e.deps.Extensions {
		if err := ext.OnRequest(ctx, areq); err != nil {
			return areq, oauth2.AsError(err)
		}
	}
	return areq, nil
}

// Process ejecuta el flujo post-autenticación: gate de consentimiento,
// estrategias en el orden listado, extensiones de respuesta y redirección.
func (e *Endpoint) Process(ctx context.Context, areq *response.AuthorizationRequest) (*Result, *oauth2.Error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.authorize"))

	if areq.UserID.IsZero() {
		return nil, oauth2.LoginRequired("end user authentication is required")
	}
	if !areq.Authorized {
		given, err := e.deps.Consents.HasConsentBeenGiven(ctx, areq.Client.ID, types.UserAccountID(areq.UserID), areq.RequestedScope)
		if err != nil {
			return nil, oauth2.ServerError(err)
		}
		if !given {
			return nil, oauth2.AccessDenied("user consent is required")
		}
		areq.Authorized = true
	}
	if areq.Scope == nil {
		areq.Scope = areq.RequestedScope
	}

	strategies, rerr := e.deps.Responses.Resolve(areq.ResponseTypes)
	if rerr != nil {
		return nil, oauth2.AsError(rerr)
	}

	params := map[string]string{}
	for _, s := range strategies {
		out, err := s.Process(ctx, areq)
		if err != nil {
			return nil, oauth2.AsError(err)
		}
		for k, v := range out {
			params[k] = v
		}
	}
	if areq.State != "" {
		params["state"] = areq.State
	}

	for _, ext := range e.deps.Extensions {
		if err := ext.OnResponse(ctx, areq, params); err != nil {
			return nil, oauth2.AsError(err)
		}
	}

	log.Info("authorization granted",
		logger.ClientID(areq.Client.ID.String()),
		logger.UserID(areq.UserID.String()),
		logger.ResponseType(strings.Join(areq.ResponseTypes, " ")),
		logger.Scope(strings.Join(areq.Scope, " ")),
	)
	return buildResult(areq.RedirectURI, areq.ResponseMode, params)
}

// ErrorResult convierte un error de protocolo en redirección hacia el client,
// si la redirect URI ya fue validada. Retorna ok=false cuando el error debe
// mostrarse directo (URI ausente o no verificada, o fallo interno).
func ErrorResult(areq *response.AuthorizationRequest, perr *oauth2.Error) (*Result, bool) {
	if areq == nil || areq.RedirectURI == "" || perr.Code == oauth2.CodeServerError {
		return nil, false
	}
	params := map[string]string{"error": perr.Code}
	if perr.Description != "" {
		params["error_description"] = perr.Description
	}
	if areq.State != "" {
		params["state"] = areq.State
	}
	mode := areq.ResponseMode
	if mode == "" {
		mode = response.ModeQuery
	}
	res, err := buildResult(areq.RedirectURI, mode, params)
	if err != nil {
		return nil, false
	}
	return res, true
}

// resolveRedirectURI aplica RFC 6749 §3.1.2.3: URI explícita debe matchear
// exacto; ausente solo se tolera con una única URI registrada.
func resolveRedirectURI(registered []string, requested string) (string, *oauth2.Error) {
	if requested == "" {
		if len(registered) == 1 {
			return registered[0], nil
		}
		return "", oauth2.InvalidRequest("redirect_uri parameter is required")
	}
	for _, ru := range registered {
		if ru == requested {
			return requested, nil
		}
	}
	return "", oauth2.InvalidRequest("redirect_uri is not registered for this client")
}

func buildResult(redirectURI, mode string, params map[string]string) (*Result, *oauth2.Error) {
	if mode == response.ModeFormPost {
		return &Result{RedirectURI: redirectURI, Mode: mode, Params: params}, nil
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, oauth2.ServerError(err)
	}
	switch mode {
	case response.ModeFragment:
		frag := url.Values{}
		for k, v := range params {
			frag.Set(k, v)
		}
		u.Fragment = ""
		u.RawFragment = ""
		return &Result{RedirectURI: u.String() + "#" + frag.Encode(), Mode: mode, Params: params}, nil
	default:
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return &Result{RedirectURI: u.String(), Mode: response.ModeQuery, Params: params}, nil
	}
}
