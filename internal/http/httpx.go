// Package http es la capa de transporte: serialización JSON, mapeo de
// errores de protocolo a respuestas HTTP y el router del servidor.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/authkernel/internal/metrics"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// WriteJSON serializa v como JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOAuthError serializa un error de protocolo con el shape del RFC 6749
// §5.2: {"error": ..., "error_description": ...}, copiando los headers del
// error (WWW-Authenticate) a la respuesta.
func WriteOAuthError(w http.ResponseWriter, r *http.Request, endpoint string, perr *oauth2.Error) {
	for k, v := range perr.Headers {
		w.Header().Set(k, v)
	}
	metrics.RecordProtocolError(endpoint, perr.Code)

	if perr.Code == oauth2.CodeServerError {
		logger.From(r.Context()).Error("request failed with server error",
			logger.Component("http"),
			logger.Err(perr.Unwrap()),
		)
	}

	body := map[string]string{"error": perr.Code}
	if perr.Description != "" {
		body["error_description"] = perr.Description
	}
	WriteJSON(w, perr.Status, body)
}
