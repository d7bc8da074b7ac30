// Package oauth2 define el vocabulario de errores de protocolo (RFC 6749/6750/7009/7662)
// compartido por todos los pipelines del motor.
package oauth2

import (
	"fmt"
	"net/http"
)

// RFC 6749 §5.2 / OIDC Core error codes.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeInvalidScope            = "invalid_scope"
	CodeAccessDenied            = "access_denied"
	CodeServerError             = "server_error"
	CodeLoginRequired           = "login_required"
)

// Error is a typed protocol error: HTTP status + RFC error code + description.
// It is raised as soon as a pipeline step detects a violation and serialized
// verbatim at the endpoint boundary. Headers (if any) must be copied onto the
// HTTP response (WWW-Authenticate on invalid_client).
type Error struct {
	Status      int
	Code        string
	Description string
	Headers     map[string]string
	cause       error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// Unwrap expone la causa envuelta (para errors.Is / errors.As).
func (e *Error) Unwrap() error { return e.cause }

// WithHeader returns the same error with an extra response header attached.
func (e *Error) WithHeader(k, v string) *Error {
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	e.Headers[k] = v
	return e
}

func newError(status int, code, desc string) *Error {
	return &Error{Status: status, Code: code, Description: desc}
}

// InvalidRequest: malformed/missing parameters, wrong content type, ambiguous auth.
func InvalidRequest(desc string) *Error {
	return newError(http.StatusBadRequest, CodeInvalidRequest, desc)
}

// InvalidClient: unknown client or failed credential verification (401).
// The caller is responsible for attaching the WWW-Authenticate header.
func InvalidClient(desc string) *Error {
	return newError(http.StatusUnauthorized, CodeInvalidClient, desc)
}

// InvalidGrant: grant-specific semantic failure (expired/reused code, bad refresh token).
func InvalidGrant(desc string) *Error {
	return newError(http.StatusBadRequest, CodeInvalidGrant, desc)
}

// UnauthorizedClient: client not permitted to use the requested grant/response type.
func UnauthorizedClient(desc string) *Error {
	return newError(http.StatusBadRequest, CodeUnauthorizedClient, desc)
}

// UnsupportedGrantType: unregistered grant type requested.
func UnsupportedGrantType(desc string) *Error {
	return newError(http.StatusBadRequest, CodeUnsupportedGrantType, desc)
}

// UnsupportedResponseType: unregistered response type requested.
func UnsupportedResponseType(desc string) *Error {
	return newError(http.StatusBadRequest, CodeUnsupportedResponseType, desc)
}

// InvalidScope: requested scope unknown or exceeds policy.
func InvalidScope(desc string) *Error {
	return newError(http.StatusBadRequest, CodeInvalidScope, desc)
}

// AccessDenied: resource owner declined, or authentication required and absent.
func AccessDenied(desc string) *Error {
	return newError(http.StatusForbidden, CodeAccessDenied, desc)
}

// LoginRequired: no authenticated end user on the authorization endpoint
// (OIDC Core §3.1.2.6).
func LoginRequired(desc string) *Error {
	return newError(http.StatusUnauthorized, CodeLoginRequired, desc)
}

// ServerError wraps a collaborator failure. The internal detail never reaches the
// wire: the description is fixed and the cause travels only through Unwrap.
func ServerError(cause error) *Error {
	e := newError(http.StatusInternalServerError, CodeServerError, "internal error")
	e.cause = cause
	return e
}

// AsError normaliza cualquier error a *Error. Un error no tipado se trata como
// fallo de colaborador (server_error) para no filtrar detalle interno.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return ServerError(fmt.Errorf("unexpected: %w", err))
}
