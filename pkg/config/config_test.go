package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CLOUDSCOPE_ENV", "CLOUDSCOPE_HTTP_ADDR",
		"GCP_KEY_FILE", "TARGET_SERVICE_ACCOUNT",
		"TOKEN_SCOPES", "TOKEN_LIFETIME_SEC", "TOKEN_MAX_LIFETIME_SEC",
		"IMPERSONATION_DELEGATES",
		"TENANT_CONCURRENCY", "COLLECTOR_CONCURRENCY",
		"OIDC_ISSUER", "OIDC_AUDIENCE", "JWKS_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Empty(t, cfg.KeyFilePath)
	assert.Empty(t, cfg.TargetIdentity)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/cloud-platform"}, cfg.Scopes)
	assert.Equal(t, time.Hour, cfg.Lifetime)
	assert.Equal(t, time.Hour, cfg.MaxLifetime)
	assert.Nil(t, cfg.Delegates)
	assert.Equal(t, 4, cfg.TenantConcurrency)
	assert.Equal(t, 3, cfg.CollectorConcurrency)
	assert.Equal(t, "cloudscope", cfg.Audience)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUDSCOPE_ENV", "prod")
	t.Setenv("CLOUDSCOPE_HTTP_ADDR", ":8080")
	t.Setenv("GCP_KEY_FILE", "/etc/keys/sa.json")
	t.Setenv("TARGET_SERVICE_ACCOUNT", "target@proj.iam.gserviceaccount.com")
	t.Setenv("TOKEN_SCOPES", "scope-a, scope-b ,,scope-c")
	t.Setenv("TOKEN_LIFETIME_SEC", "900")
	t.Setenv("TOKEN_MAX_LIFETIME_SEC", "1800")
	t.Setenv("IMPERSONATION_DELEGATES", "mid@proj.iam.gserviceaccount.com")
	t.Setenv("TENANT_CONCURRENCY", "8")
	t.Setenv("COLLECTOR_CONCURRENCY", "2")

	cfg := Load()
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "/etc/keys/sa.json", cfg.KeyFilePath)
	assert.Equal(t, "target@proj.iam.gserviceaccount.com", cfg.TargetIdentity)
	assert.Equal(t, []string{"scope-a", "scope-b", "scope-c"}, cfg.Scopes)
	assert.Equal(t, 15*time.Minute, cfg.Lifetime)
	assert.Equal(t, 30*time.Minute, cfg.MaxLifetime)
	assert.Equal(t, []string{"mid@proj.iam.gserviceaccount.com"}, cfg.Delegates)
	assert.Equal(t, 8, cfg.TenantConcurrency)
	assert.Equal(t, 2, cfg.CollectorConcurrency)
}

func TestConcurrencyRejectsNonPositive(t *testing.T) {
	clearEnv(t)
	t.Setenv("TENANT_CONCURRENCY", "0")
	t.Setenv("COLLECTOR_CONCURRENCY", "-1")

	cfg := Load()
	assert.Equal(t, 4, cfg.TenantConcurrency)
	assert.Equal(t, 3, cfg.CollectorConcurrency)
}
