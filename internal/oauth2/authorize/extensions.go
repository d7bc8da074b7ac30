package authorize

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/pkce"
	"github.com/dropDatabas3/authkernel/internal/oauth2/response"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// Extension engancha lógica extra en el authorization endpoint: OnRequest
// corre tras validar el request (antes del consentimiento), OnResponse tras
// procesar las estrategias (puede agregar params a la respuesta).
type Extension interface {
	OnRequest(ctx context.Context, areq *response.AuthorizationRequest) error
	OnResponse(ctx context.Context, areq *response.AuthorizationRequest, params map[string]string) error
}

// PKCEExtension captura code_challenge/code_challenge_method y los valida
// contra los métodos registrados. El challenge viaja en Extra hasta la
// emisión del code; la verificación real ocurre en el canje.
type PKCEExtension struct {
	Methods *pkce.Manager
}

func (e PKCEExtension) OnRequest(_ context.Context, areq *response.AuthorizationRequest) error {
	challenge := areq.Param("code_challenge")
	if challenge == "" {
		if areq.Client.RequirePKCE() && includes(areq.ResponseTypes, "code") {
			return oauth2.InvalidRequest("this client requires a code_challenge")
		}
		return nil
	}
	method := areq.Param("code_challenge_method")
	if method == "" {
		method = "plain"
	}
	if !e.Methods.Has(method) {
		return oauth2.InvalidRequest("unsupported code_challenge_method " + method)
	}
	areq.Extra = areq.Extra.
		With("code_challenge", challenge).
		With("code_challenge_method", method)
	return nil
}

func (PKCEExtension) OnResponse(context.Context, *response.AuthorizationRequest, map[string]string) error {
	return nil
}

// SessionStateExtension agrega session_state (OIDC Session Management) a las
// respuestas de clients OIDC: hash de client+user+salt, con el salt expuesto
// para que el RP pueda recomputarlo.
type SessionStateExtension struct{}

func (SessionStateExtension) OnRequest(context.Context, *response.AuthorizationRequest) error {
	return nil
}

func (SessionStateExtension) OnResponse(_ context.Context, areq *response.AuthorizationRequest, params map[string]string) error {
	if !includes(areq.Scope, "openid") {
		return nil
	}
	salt, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return err
	}
	material := strings.Join([]string{areq.Client.ID.String(), areq.UserID.String(), salt}, " ")
	params["session_state"] = tokens.SHA256Base64URL(material) + "." + salt
	return nil
}

func includes(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
