package grant

import (
	"context"
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/jose"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

var errMissingPreparedToken = errors.New("grant: prepared data missing")

// JWTBearer canjea una assertion JWT firmada por un trusted issuer
// (RFC 7523 §2.1).
type JWTBearer struct {
	Issuers repository.TrustedIssuerRepository
	// Audience esperada en la assertion (URL del token endpoint). Vacío = no se valida.
	Audience string
}

func (g *JWTBearer) Name() string { return TypeJWTBearer }

func (g *JWTBearer) AssociatedResponseTypes() []string { return nil }

func (g *JWTBearer) CheckRequest(r *Request) error {
	if r.Param("assertion") == "" {
		return oauth2.InvalidRequest("assertion parameter is missing")
	}
	return nil
}

func (g *JWTBearer) PrepareResponse(_ context.Context, _ *Request, _ *Data) error {
	return nil
}

func (g *JWTBearer) Grant(ctx context.Context, r *Request, d *Data) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.grant.jwtbearer"))
	assertion := r.Param("assertion")

	// Primero descubrir el issuer (sin verificar firma).
	parser := jwtv5.NewParser()
	unverified, _, err := parser.ParseUnverified(assertion, jwtv5.MapClaims{})
	if err != nil {
		return oauth2.InvalidGrant("assertion is malformed")
	}
	rawClaims, _ := unverified.Claims.(jwtv5.MapClaims)
	issName, _ := rawClaims["iss"].(string)
	if issName == "" {
		return oauth2.InvalidGrant("assertion has no issuer")
	}

	iss, err := g.Issuers.Find(ctx, issName)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("assertion from unknown issuer", logger.String("iss", issName))
			return oauth2.InvalidGrant("assertion issuer is not trusted")
		}
		return oauth2.ServerError(err)
	}
	if !iss.IsAssertionTypeAllowed(TypeJWTBearer) {
		return oauth2.InvalidGrant("issuer does not allow this assertion type")
	}

	claims, err := jose.VerifyAssertion(assertion, jose.KeyfuncForJWKS(iss.JWKS), iss.AllowedSignatureAlgs)
	if err != nil {
		log.Warn("assertion verification failed", logger.Err(err))
		return oauth2.InvalidGrant("assertion signature verification failed")
	}
	if alg, _ := unverified.Header["alg"].(string); !iss.IsSignatureAlgAllowed(alg) {
		return oauth2.InvalidGrant("assertion signature algorithm is not allowed")
	}
	if g.Audience != "" && !hasAudience(claims, g.Audience) {
		return oauth2.InvalidGrant("assertion audience does not match this server")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return oauth2.InvalidGrant("assertion has no subject")
	}
	d.ResourceOwnerID = types.ResourceOwnerID(sub)
	d.IssueRefreshToken = false
	d.Metadata = d.Metadata.With("assertion_issuer", issName)
	return nil
}

func hasAudience(claims jwtv5.MapClaims, expected string) bool {
	auds, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range auds {
		if a == expected {
			return true
		}
	}
	return false
}
