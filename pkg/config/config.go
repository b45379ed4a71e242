// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Impersonation inputs
	KeyFilePath    string        // path to the principal's key material
	TargetIdentity string        // service account to impersonate
	Scopes         []string      // OAuth scopes requested for the delegated token
	Lifetime       time.Duration // requested delegated-token TTL
	MaxLifetime    time.Duration // upper bound; out-of-range lifetimes are rejected, not clamped
	Delegates      []string      // optional delegation chain

	// Fan-out bounds (upstream APIs are rate limited)
	TenantConcurrency    int // concurrent tenants per run
	CollectorConcurrency int // concurrent collectors per tenant

	// Inbound API auth (optional; passthrough in dev when unset)
	Issuer   string
	Audience string
	JWKSURL  string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("CLOUDSCOPE_ENV", "dev"),
		HTTPAddr:             env("CLOUDSCOPE_HTTP_ADDR", ":5000"),
		KeyFilePath:          env("GCP_KEY_FILE", ""),
		TargetIdentity:       env("TARGET_SERVICE_ACCOUNT", ""),
		Scopes:               envList("TOKEN_SCOPES", "https://www.googleapis.com/auth/cloud-platform"),
		Lifetime:             envDur("TOKEN_LIFETIME_SEC", 3600) * time.Second,
		MaxLifetime:          envDur("TOKEN_MAX_LIFETIME_SEC", 3600) * time.Second,
		Delegates:            envList("IMPERSONATION_DELEGATES", ""),
		TenantConcurrency:    envInt("TENANT_CONCURRENCY", 4),
		CollectorConcurrency: envInt("COLLECTOR_CONCURRENCY", 3),
		Issuer:               env("OIDC_ISSUER", ""),
		Audience:             env("OIDC_AUDIENCE", "cloudscope"),
		JWKSURL:              env("JWKS_URL", ""),
	}
	if cfg.KeyFilePath == "" {
		log.Println("[WARN] GCP_KEY_FILE not set; authentication will fail until configured")
	}
	if cfg.TargetIdentity == "" {
		log.Println("[WARN] TARGET_SERVICE_ACCOUNT not set; authentication will fail until configured")
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
		i, err := strconv.Atoi(v)
		if err == nil && i > 0 {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envList(k, def string) []string {
	raw := env(k, def)
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
