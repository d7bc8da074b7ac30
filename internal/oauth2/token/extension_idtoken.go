package token

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/jose"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// IDTokenExtension co-emite un id_token cuando el scope otorgado incluye
// "openid" (OIDC Core §3.1.3.6).
func IDTokenExtension(signer *jose.Signer, users repository.UserAccountRepository, ttl time.Duration) Extension {
	return func(ctx context.Context, ec *ExtensionContext, next func() error) error {
		if !hasScope(ec.Data.Scope, "openid") {
			return next()
		}

		extra := map[string]any{
			"azp":     ec.Client.ID.String(),
			"at_hash": jose.AtHash(ec.TokenValue),
		}
		if nonce := ec.Data.Metadata.String("nonce"); nonce != "" {
			extra["nonce"] = nonce
		}
		enrichFromScopes(ctx, users, ec.Data.ResourceOwnerID, ec.Data.Scope, extra)

		idToken, _, err := signer.IssueIDToken(
			ec.Data.ResourceOwnerID.String(),
			ec.Client.ID.String(),
			extra,
			ttl,
		)
		if err != nil {
			return err
		}
		ec.Response["id_token"] = idToken

		logger.From(ctx).Debug("id_token co-issued",
			logger.Component("oauth.token.idtoken"),
			logger.ClientID(ec.Client.ID.String()),
		)
		return next()
	}
}

// enrichFromScopes agrega claims del usuario según los scopes OIDC estándar.
func enrichFromScopes(ctx context.Context, users repository.UserAccountRepository, owner types.ResourceOwnerID, scopes []string, claims map[string]any) {
	if users == nil {
		return
	}
	user, err := users.Find(ctx, types.UserAccountID(owner))
	if err != nil || user == nil {
		return // el id_token sale sin enriquecer; no es fatal
	}
	for _, s := range scopes {
		switch s {
		case "profile":
			for _, k := range []string{"name", "given_name", "family_name", "picture", "locale"} {
				if v := user.Claims.Get(k); v != nil {
					claims[k] = v
				}
			}
		case "email":
			if v := user.Claims.Get("email"); v != nil {
				claims["email"] = v
				claims["email_verified"] = user.Claims.GetOr("email_verified", false)
			}
		}
	}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
