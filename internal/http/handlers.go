package http

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/jose"
	"github.com/dropDatabas3/authkernel/internal/metrics"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/authorize"
	"github.com/dropDatabas3/authkernel/internal/oauth2/clientauth"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
	"github.com/dropDatabas3/authkernel/internal/oauth2/introspect"
	"github.com/dropDatabas3/authkernel/internal/oauth2/response"
	"github.com/dropDatabas3/authkernel/internal/oauth2/revoke"
	"github.com/dropDatabas3/authkernel/internal/oauth2/token"
)

// Deps agrupa los servicios que exponen los handlers.
type Deps struct {
	Token      *token.Endpoint
	Authorize  *authorize.Endpoint
	Introspect *introspect.Service
	Revoke     *revoke.Service
	Auth       *clientauth.Authenticator

	Users    repository.UserAccountRepository
	Consents repository.ConsentRepository
	Scopes   repository.ScopeRepository

	Keys      *jose.KeySet
	IssuerURL string
	Grants    *grant.Manager

	PKCEMethods []string
	// RevokeAllowCallback habilita GET /oauth2/revoke con callback JSONP.
	RevokeAllowCallback bool

	// Ready chequea dependencias para readiness. nil = siempre listo.
	Ready func(ctx context.Context) error
}

func (d *Deps) handleToken(w http.ResponseWriter, r *http.Request) {
	resp, perr := d.Token.Exchange(r.Context(), r)
	if perr != nil {
		WriteOAuthError(w, r, "token", perr)
		return
	}
	metrics.RecordTokenIssued(r.PostForm.Get("grant_type"))
	WriteJSON(w, http.StatusOK, resp)
}

func (d *Deps) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	areq, perr := d.Authorize.ParseRequest(ctx, r)
	if perr != nil {
		d.authorizeError(w, r, areq, perr)
		return
	}

	// Autenticación del end user: Basic contra el repositorio de cuentas.
	// Un despliegue con UI propia reemplaza este paso por su sesión.
	if username, password, ok := r.BasicAuth(); ok {
		user, err := d.Users.FindByCredentials(ctx, username, password)
		if err == nil {
			areq.UserID = types.ResourceOwnerID(user.ID)
		}
	}
	if areq.UserID.IsZero() {
		perr := oauth2.LoginRequired("end user authentication is required").
			WithHeader("WWW-Authenticate", `Basic realm="authorization", charset="UTF-8"`)
		d.authorizeError(w, r, areq, perr)
		return
	}

	res, perr := d.Authorize.Process(ctx, areq)
	if perr != nil {
		d.authorizeError(w, r, areq, perr)
		return
	}
	metrics.RecordAuthorization(strings.Join(areq.ResponseTypes, " "))

	if res.Mode == response.ModeFormPost {
		writeFormPost(w, areq.RedirectURI, res.Params)
		return
	}
	http.Redirect(w, r, res.RedirectURI, http.StatusFound)
}

// authorizeError redirige el error al client cuando la redirect URI ya fue
// validada; si no, lo sirve directo.
func (d *Deps) authorizeError(w http.ResponseWriter, r *http.Request, areq *response.AuthorizationRequest, perr *oauth2.Error) {
	metrics.RecordProtocolError("authorize", perr.Code)
	if res, ok := authorize.ErrorResult(areq, perr); ok {
		if res.Mode == response.ModeFormPost {
			writeFormPost(w, areq.RedirectURI, res.Params)
			return
		}
		http.Redirect(w, r, res.RedirectURI, http.StatusFound)
		return
	}
	WriteOAuthError(w, r, "authorize", perr)
}

// handleConsent registra la decisión de consentimiento del usuario autenticado.
func (d *Deps) handleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username, password, ok := r.BasicAuth()
	if !ok {
		perr := oauth2.LoginRequired("end user authentication is required").
			WithHeader("WWW-Authenticate", `Basic realm="authorization", charset="UTF-8"`)
		WriteOAuthError(w, r, "consent", perr)
		return
	}
	user, err := d.Users.FindByCredentials(ctx, username, password)
	if err != nil {
		WriteOAuthError(w, r, "consent", oauth2.AccessDenied("invalid end user credentials"))
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteOAuthError(w, r, "consent", oauth2.InvalidRequest("request body is malformed"))
		return
	}
	clientID := strings.TrimSpace(r.PostForm.Get("client_id"))
	if clientID == "" {
		WriteOAuthError(w, r, "consent", oauth2.InvalidRequest("client_id parameter is missing"))
		return
	}
	scopes := strings.Fields(r.PostForm.Get("scope"))
	now := time.Now().UTC()
	consent := &repository.Consent{
		ClientID:       types.ClientID(clientID),
		UserAccountID:  user.ID,
		RequestedScope: scopes,
		GrantedScope:   scopes,
		DecidedAt:      &now,
	}
	if err := d.Consents.Save(ctx, consent); err != nil {
		WriteOAuthError(w, r, "consent", oauth2.ServerError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Deps) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, perr := d.Introspect.Authenticate(ctx, r); perr != nil {
		WriteOAuthError(w, r, "introspect", perr)
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteOAuthError(w, r, "introspect", oauth2.InvalidRequest("request body is malformed"))
		return
	}
	resp, perr := d.Introspect.Introspect(ctx, r.PostForm.Get("token"), r.PostForm.Get("token_type_hint"))
	if perr != nil {
		WriteOAuthError(w, r, "introspect", perr)
		return
	}
	active, _ := resp["active"].(bool)
	metrics.RecordIntrospection(active)
	WriteJSON(w, http.StatusOK, resp)
}

func (d *Deps) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodGet && !d.RevokeAllowCallback {
		WriteOAuthError(w, r, "revoke", oauth2.InvalidRequest("only POST is allowed"))
		return
	}

	c, _, err := d.Auth.Authenticate(ctx, r)
	if err != nil {
		WriteOAuthError(w, r, "revoke", oauth2.AsError(err))
		return
	}

	tokenValue := r.FormValue("token")
	hint := r.FormValue("token_type_hint")
	if perr := d.Revoke.Revoke(ctx, c, tokenValue, hint); perr != nil {
		WriteOAuthError(w, r, "revoke", perr)
		return
	}
	metrics.RecordRevocation(hint)

	if cb := r.FormValue("callback"); cb != "" && d.RevokeAllowCallback {
		w.Header().Set("Content-Type", "application/javascript;charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s();", html.EscapeString(cb))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (d *Deps) handleJWKS(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"keys": d.Keys.PublicJWKS()})
}

func (d *Deps) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	iss := strings.TrimRight(d.IssuerURL, "/")
	scopes := []string{}
	if d.Scopes != nil {
		if list, err := d.Scopes.List(r.Context()); err == nil {
			for _, s := range list {
				scopes = append(scopes, s.Name)
			}
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"issuer":                 iss,
		"authorization_endpoint": iss + "/oauth2/authorize",
		"token_endpoint":         iss + "/oauth2/token",
		"introspection_endpoint": iss + "/oauth2/introspect",
		"revocation_endpoint":    iss + "/oauth2/revoke",
		"jwks_uri":               iss + "/.well-known/jwks.json",
		"grant_types_supported":  d.Grants.Names(),
		"response_types_supported": []string{
			"code", "token", "id_token", "none",
			"code id_token", "id_token token", "code id_token token",
		},
		"response_modes_supported":              []string{"query", "fragment", "form_post"},
		"code_challenge_methods_supported":      d.PKCEMethods,
		"scopes_supported":                      scopes,
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"token_endpoint_auth_methods_supported": []string{
			"none", "client_secret_basic", "client_secret_post",
			"client_secret_jwt", "private_key_jwt",
		},
	})
}

func (d *Deps) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Deps) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if d.Ready != nil {
		if err := d.Ready(r.Context()); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeFormPost renderiza el auto-submit form del response mode form_post.
func writeFormPost(w http.ResponseWriter, action string, params map[string]string) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Submit</title></head>")
	b.WriteString(`<body onload="document.forms[0].submit()">`)
	fmt.Fprintf(&b, `<form method="post" action="%s">`, html.EscapeString(action))
	for k, v := range params {
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s"/>`,
			html.EscapeString(k), html.EscapeString(v))
	}
	b.WriteString(`<noscript><button type="submit">Continue</button></noscript>`)
	b.WriteString("</form></body></html>")

	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
