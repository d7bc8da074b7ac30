package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authkernel/internal/cache"
	"github.com/dropDatabas3/authkernel/internal/config"
	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	httpx "github.com/dropDatabas3/authkernel/internal/http"
	"github.com/dropDatabas3/authkernel/internal/jose"
	"github.com/dropDatabas3/authkernel/internal/metrics"
	"github.com/dropDatabas3/authkernel/internal/oauth2/authorize"
	"github.com/dropDatabas3/authkernel/internal/oauth2/clientauth"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
	"github.com/dropDatabas3/authkernel/internal/oauth2/introspect"
	"github.com/dropDatabas3/authkernel/internal/oauth2/pkce"
	"github.com/dropDatabas3/authkernel/internal/oauth2/response"
	"github.com/dropDatabas3/authkernel/internal/oauth2/revoke"
	"github.com/dropDatabas3/authkernel/internal/oauth2/scope"
	"github.com/dropDatabas3/authkernel/internal/oauth2/token"
	"github.com/dropDatabas3/authkernel/internal/oauth2/tokenhint"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
	"github.com/dropDatabas3/authkernel/internal/store/cachestore"
	"github.com/dropDatabas3/authkernel/internal/store/memory"
	"github.com/dropDatabas3/authkernel/internal/store/pg"
	"github.com/jackc/pgx/v5/pgxpool"
)

func runServe(ctx context.Context, configPath, seedPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	issuerURL := strings.TrimRight(cfg.Issuer.URL, "/")
	if issuerURL == "" {
		issuerURL = "http://localhost:8080"
	}
	tokenURL := issuerURL + "/oauth2/token"

	// Backend de cache para los repos volátiles (tokens opacos, codes).
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return err
	}

	// El store en memoria siempre existe: es el backend del driver memory y
	// el registry de resource servers / trusted issuers en ambos drivers.
	mem := memory.New()

	clients := repository.ClientRepository(mem.Clients())
	users := repository.UserAccountRepository(mem.Users())
	scopes := repository.ScopeRepository(mem.Scopes())
	consents := repository.ConsentRepository(mem.Consents())
	refreshTokens := repository.RefreshTokenRepository(&cachestore.RefreshTokens{Cache: cacheClient})
	accessTokens := repository.AccessTokenRepository(&cachestore.AccessTokens{Cache: cacheClient})
	authCodes := repository.AuthorizationCodeRepository(&cachestore.AuthCodes{Cache: cacheClient})

	var poolFn func() *pgxpool.Pool
	ready := func(context.Context) error { return nil }

	if cfg.Storage.Driver == "postgres" {
		pgStore, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			MinConns:        int32(cfg.Storage.Postgres.MinConns),
			ConnMaxLifetime: mustDur(cfg.Storage.Postgres.ConnMaxLifetime),
		})
		if err != nil {
			return err
		}
		defer pgStore.Close()

		clients = pgStore.Clients()
		users = pgStore.Users()
		scopes = pgStore.Scopes()
		consents = pgStore.Consents()
		refreshTokens = pgStore.RefreshTokens()
		poolFn = pgStore.Pool
		ready = pgStore.Ping
	}

	if seedPath != "" {
		if err := applySeed(ctx, seedPath, mem, clients); err != nil {
			return err
		}
		log.Info("seed applied", logger.String("path", seedPath))
	}

	// Claves de firma: seed configurado o efímera para dev.
	var keys *jose.KeySet
	if cfg.Issuer.SigningSeed != "" {
		keys, err = jose.NewKeySetFromSeed(cfg.Issuer.ActiveKID, cfg.Issuer.SigningSeed)
	} else {
		keys, err = jose.NewEphemeralKeySet()
		log.Warn("no signing seed configured, using an ephemeral key")
	}
	if err != nil {
		return err
	}
	signer := jose.NewSigner(issuerURL, keys)

	gen := types.UUIDGenerator{}
	pkceMethods := pkce.Default()

	authMethods := clientauth.NewManager(cfg.OAuth.Realm,
		clientauth.None{},
		clientauth.SecretBasic{Realm: cfg.OAuth.Realm},
		clientauth.SecretPost{},
		clientauth.SecretJWT{Audience: tokenURL},
		clientauth.PrivateKeyJWT{Audience: tokenURL},
	)
	authenticator := &clientauth.Authenticator{Methods: authMethods, Clients: clients}

	grants := grant.NewManager(
		&grant.AuthorizationCode{Codes: authCodes, PKCE: pkceMethods},
		&grant.Implicit{},
		&grant.ClientCredentials{},
		&grant.Password{Users: users},
		&grant.RefreshToken{Tokens: refreshTokens},
		&grant.JWTBearer{Issuers: mem.TrustedIssuers(), Audience: tokenURL},
	)

	policies := scope.NewPolicyManager(cfg.OAuth.ScopePolicy,
		scope.NonePolicy{},
		scope.DefaultPolicy{ServerDefault: strings.Fields(cfg.OAuth.DefaultScope)},
		scope.ErrorPolicy{},
	)
	scopeChecker := &scope.ParameterChecker{Policies: policies, Scopes: scopes}

	tokenTypes := token.NewTypeManager(token.Bearer{}, token.MAC{})
	tokenTypes.AllowRequestParameter = cfg.Tokens.AllowTypeParameter

	tokenEndpoint := token.NewEndpoint(token.EndpointDeps{
		Authenticator: authenticator,
		Grants:        grants,
		Scopes:        scopeChecker,
		Types:         tokenTypes,
		Extensions: token.ExtensionChain{
			token.IDTokenExtension(signer, users, cfg.IDTokenTTL()),
		},
		AccessTokens:    accessTokens,
		RefreshTokens:   refreshTokens,
		IDs:             gen,
		AccessTokenTTL:  cfg.AccessTTL(),
		RefreshTokenTTL: cfg.RefreshTTL(),
	})

	responses := response.NewManager(
		&response.Code{Codes: authCodes, TTL: cfg.CodeTTL()},
		&response.Token{AccessTokens: accessTokens, IDs: gen, TTL: cfg.AccessTTL()},
		&response.IDToken{Signer: signer, Users: users, TTL: cfg.IDTokenTTL()},
		&response.None{Storage: mem.Authorizations()},
	)

	authorizeEndpoint := authorize.NewEndpoint(authorize.Deps{
		Clients:   clients,
		Consents:  consents,
		Responses: responses,
		Scopes:    scopeChecker,
		Extensions: []authorize.Extension{
			authorize.PKCEExtension{Methods: pkceMethods},
			authorize.SessionStateExtension{},
		},
	})

	hints := tokenhint.NewManager(
		&tokenhint.AccessTokenHint{Tokens: accessTokens},
		&tokenhint.RefreshTokenHint{Tokens: refreshTokens},
	)
	introspectSvc := introspect.NewService(introspect.Deps{
		Hints:           hints,
		ResourceServers: mem.ResourceServers(),
	})
	revokeSvc := revoke.NewService(revoke.Deps{Hints: hints})

	metricsHandler, err := metrics.Register(metrics.Config{Pool: poolFn})
	if err != nil {
		return err
	}

	deps := &httpx.Deps{
		Token:               tokenEndpoint,
		Authorize:           authorizeEndpoint,
		Introspect:          introspectSvc,
		Revoke:              revokeSvc,
		Auth:                authenticator,
		Users:               users,
		Consents:            consents,
		Scopes:              scopes,
		Keys:                keys,
		IssuerURL:           issuerURL,
		Grants:              grants,
		PKCEMethods:         pkceMethods.Names(),
		RevokeAllowCallback: cfg.OAuth.RevokeAllowCallback,
		Ready:               ready,
	}

	srv := httpx.NewServer(httpx.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     mustDur(cfg.Server.ReadTimeout),
		WriteTimeout:    mustDur(cfg.Server.WriteTimeout),
		ShutdownTimeout: mustDur(cfg.Server.ShutdownTimeout),
	}, httpx.NewRouter(deps, metricsHandler))

	log.Info("starting",
		logger.String("env", cfg.App.Env),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("issuer", issuerURL),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// mustDur: las duraciones ya pasaron por config.Validate.
func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
