// pkg/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServerName    = "workplace-search"
	ServerVersion = "1.0.0"
)

type Config struct {
	Env      string
	HTTPAddr string

	// OIDC / JWT verification (the external credential verifier)
	DescopeProjectID string
	Issuer           string
	JWKSURL          string
	Audience         string
	ClockSkew        time.Duration

	// Internal token issuance (token exchange endpoint)
	JWTSecretKey  string
	JWTExpiration time.Duration
	InternalIss   string

	// Observability gateway (request/response telemetry)
	GatewayURL    string
	GatewayAPIKey string

	// Optional stores
	RedisURL    string
	DatabaseURL string

	// Connector registry
	ConnectorsFile   string
	ConnectorTimeout time.Duration
	DefaultSources   []string

	// Request bounds
	MaxSources  int
	MaxResults  int
	MaxQueryLen int

	// HTTP edge
	AllowedOrigins []string
	TrustedHosts   []string

	// Optional guard policy (rego)
	GuardPolicyPath string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("SEARCHGATE_ENV", "dev"),
		HTTPAddr:         env("SEARCHGATE_HTTP_ADDR", ":8000"),
		DescopeProjectID: env("DESCOPE_PROJECT_ID", ""),
		Issuer:           env("OIDC_ISSUER", ""),
		JWKSURL:          env("JWKS_URL", ""),
		Audience:         env("OIDC_AUDIENCE", ""),
		ClockSkew:        envDur("OIDC_CLOCK_SKEW_SEC", 60) * time.Second,
		JWTSecretKey:     env("JWT_SECRET_KEY", ""),
		JWTExpiration:    envDur("JWT_EXPIRATION_HOURS", 24) * time.Hour,
		InternalIss:      env("INTERNAL_ISSUER", ServerName),
		GatewayURL:       env("CEQUENCE_GATEWAY_URL", ""),
		GatewayAPIKey:    env("CEQUENCE_API_KEY", ""),
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
		ConnectorsFile:   env("CONNECTORS_FILE", ""),
		ConnectorTimeout: envDur("CONNECTOR_TIMEOUT_SEC", 15) * time.Second,
		DefaultSources:   envList("DEFAULT_SOURCES", "google_drive,notion"),
		MaxSources:       envInt("MAX_SOURCES", 5),
		MaxResults:       envInt("MAX_RESULTS", 50),
		MaxQueryLen:      envInt("MAX_QUERY_LEN", 500),
		AllowedOrigins:   envList("ALLOWED_ORIGINS", "https://claude.ai,https://desktop.claude.ai,http://localhost:3000"),
		TrustedHosts:     envList("TRUSTED_HOSTS", ""),
		GuardPolicyPath:  env("GUARD_POLICY_PATH", ""),
	}
	// Descope-hosted projects expose issuer and JWKS under the project URL;
	// explicit OIDC_ISSUER / JWKS_URL take precedence.
	if cfg.DescopeProjectID != "" {
		base := fmt.Sprintf("https://api.descope.com/v1/projects/%s", cfg.DescopeProjectID)
		if cfg.Issuer == "" {
			cfg.Issuer = base
		}
		if cfg.JWKSURL == "" {
			cfg.JWKSURL = base + "/keys"
		}
	}
	if cfg.JWKSURL == "" && cfg.JWTSecretKey == "" {
		log.Println("[WARN] neither JWKS_URL/DESCOPE_PROJECT_ID nor JWT_SECRET_KEY set; all bearer tokens will be rejected")
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; usage events will not be recorded")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}

func envList(k, def string) []string {
	raw := env(k, def)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
