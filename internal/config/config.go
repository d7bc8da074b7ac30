package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Issuer struct {
		URL       string `yaml:"url"`
		ActiveKID string `yaml:"active_kid"`
		// Seed Ed25519 en base64url raw (32 bytes). Vacío = clave efímera.
		SigningSeed string `yaml:"signing_seed"`
	} `yaml:"issuer"`

	Tokens struct {
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		CodeTTL    string `yaml:"code_ttl"`
		IDTokenTTL string `yaml:"id_token_ttl"`
		// Habilita el parámetro token_type del token request.
		AllowTypeParameter bool `yaml:"allow_type_parameter"`
	} `yaml:"tokens"`

	OAuth struct {
		Realm string `yaml:"realm"`
		// Scope default del servidor cuando client y request no traen ninguno.
		DefaultScope string `yaml:"default_scope"`
		// none | default | error
		ScopePolicy string `yaml:"scope_policy"`
		// Habilita GET /oauth2/revoke con callback (JSONP legado).
		RevokeAllowCallback bool `yaml:"revoke_allow_callback"`
	} `yaml:"oauth"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadOrDefault carga el archivo si existe; si no, arranca con defaults
// pisados por variables de entorno.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyDefaults completa los valores no seteados.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "20s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Tokens.AccessTTL == "" {
		c.Tokens.AccessTTL = "1h"
	}
	if c.Tokens.RefreshTTL == "" {
		c.Tokens.RefreshTTL = "720h" // 30d
	}
	if c.Tokens.CodeTTL == "" {
		c.Tokens.CodeTTL = "10m"
	}
	if c.Tokens.IDTokenTTL == "" {
		c.Tokens.IDTokenTTL = "1h"
	}
	if c.OAuth.Realm == "" {
		c.OAuth.Realm = "authkernel"
	}
	if c.OAuth.ScopePolicy == "" {
		c.OAuth.ScopePolicy = "default"
	}
	if c.Issuer.ActiveKID == "" {
		c.Issuer.ActiveKID = "key-1"
	}
}

// Duration helpers: las TTL viajan como string en YAML y se validan en Load.

func (c *Config) AccessTTL() time.Duration  { return mustDur(c.Tokens.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration { return mustDur(c.Tokens.RefreshTTL) }
func (c *Config) CodeTTL() time.Duration    { return mustDur(c.Tokens.CodeTTL) }
func (c *Config) IDTokenTTL() time.Duration { return mustDur(c.Tokens.IDTokenTTL) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Validate verifica valores críticos.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"tokens.access_ttl":       c.Tokens.AccessTTL,
		"tokens.refresh_ttl":      c.Tokens.RefreshTTL,
		"tokens.code_ttl":         c.Tokens.CodeTTL,
		"tokens.id_token_ttl":     c.Tokens.IDTokenTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for the postgres driver")
	}
	switch c.OAuth.ScopePolicy {
	case "none", "default", "error":
	default:
		return fmt.Errorf("config: unknown scope policy %q", c.OAuth.ScopePolicy)
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// ISSUER
	if v, ok := getEnvStr("ISSUER_URL"); ok {
		c.Issuer.URL = v
	}
	if v, ok := getEnvStr("ISSUER_ACTIVE_KID"); ok {
		c.Issuer.ActiveKID = v
	}
	if v, ok := getEnvStr("ISSUER_SIGNING_SEED"); ok {
		c.Issuer.SigningSeed = v
	}

	// TOKENS
	if v, ok := getEnvStr("TOKENS_ACCESS_TTL"); ok {
		c.Tokens.AccessTTL = v
	}
	if v, ok := getEnvStr("TOKENS_REFRESH_TTL"); ok {
		c.Tokens.RefreshTTL = v
	}
	if v, ok := getEnvStr("TOKENS_CODE_TTL"); ok {
		c.Tokens.CodeTTL = v
	}
	if v, ok := getEnvStr("TOKENS_ID_TOKEN_TTL"); ok {
		c.Tokens.IDTokenTTL = v
	}
	if v, ok := getEnvBool("TOKENS_ALLOW_TYPE_PARAMETER"); ok {
		c.Tokens.AllowTypeParameter = v
	}

	// OAUTH
	if v, ok := getEnvStr("OAUTH_REALM"); ok {
		c.OAuth.Realm = v
	}
	if v, ok := getEnvStr("OAUTH_DEFAULT_SCOPE"); ok {
		c.OAuth.DefaultScope = v
	}
	if v, ok := getEnvStr("OAUTH_SCOPE_POLICY"); ok {
		c.OAuth.ScopePolicy = strings.ToLower(v)
	}
	if v, ok := getEnvBool("OAUTH_REVOKE_ALLOW_CALLBACK"); ok {
		c.OAuth.RevokeAllowCallback = v
	}
}
