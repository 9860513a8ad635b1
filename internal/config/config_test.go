package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv sets the minimum env for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("AUTH_SIGNING_KEY", strings.Repeat("k", 32))
	os.Setenv("AUTH_DIGEST_KEY", strings.Repeat("d", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.SigningAlg != "HS256" {
		t.Errorf("SigningAlg = %q, want %q", cfg.SigningAlg, "HS256")
	}
	if cfg.Issuer != "authcore" {
		t.Errorf("Issuer = %q, want %q", cfg.Issuer, "authcore")
	}
	if cfg.Audience != "modelplane-api" {
		t.Errorf("Audience = %q, want %q", cfg.Audience, "modelplane-api")
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", got)
	}
	if got := cfg.ReuseWindow(); got != 24*time.Hour {
		t.Errorf("ReuseWindow = %v, want 24h", got)
	}
	if cfg.MaxSessionsPerSubject != 10 {
		t.Errorf("MaxSessionsPerSubject = %d, want 10", cfg.MaxSessionsPerSubject)
	}
	if cfg.RotationMaxDepth != 1000 {
		t.Errorf("RotationMaxDepth = %d, want 1000", cfg.RotationMaxDepth)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
}

func TestLoad_MissingSigningKeyFatal(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_DIGEST_KEY", strings.Repeat("d", 32))

	if _, err := Load(); err == nil {
		t.Fatal("Load without AUTH_SIGNING_KEY should fail")
	}
}

func TestLoad_MissingDigestKeyFatal(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_SIGNING_KEY", strings.Repeat("k", 32))

	if _, err := Load(); err == nil {
		t.Fatal("Load without AUTH_DIGEST_KEY should fail")
	}
}

func TestLoad_ShortSigningKeyRejected(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("AUTH_SIGNING_KEY", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("short AUTH_SIGNING_KEY should fail")
	}
}

func TestLoad_AsymmetricRequiresKeyPair(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("AUTH_SIGNING_ALG", "RS256")

	if _, err := Load(); err == nil {
		t.Fatal("RS256 without key pair should fail")
	}

	os.Setenv("AUTH_PRIVATE_KEY", "/keys/private.pem")
	os.Setenv("AUTH_PUBLIC_KEY", "/keys/public.pem")
	if _, err := Load(); err != nil {
		t.Fatalf("RS256 with key pair: %v", err)
	}
}

func TestLoad_UnknownAlgRejected(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("AUTH_SIGNING_ALG", "none")

	if _, err := Load(); err == nil {
		t.Fatal("unknown AUTH_SIGNING_ALG should fail")
	}
}

func TestLoad_InsecureCookieRejectedInProduction(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("COOKIE_SECURE", "false")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("COOKIE_SECURE=false with APP_ENV=production should fail")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("ACCESS_TTL", "5m")
	os.Setenv("MAX_SESSIONS_PER_SUBJECT", "3")
	os.Setenv("REUSE_DETECTION_WINDOW", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if got := cfg.AccessTTL(); got != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", got)
	}
	if cfg.MaxSessionsPerSubject != 3 {
		t.Errorf("MaxSessionsPerSubject = %d, want 3", cfg.MaxSessionsPerSubject)
	}
	if got := cfg.ReuseWindow(); got != time.Hour {
		t.Errorf("ReuseWindow = %v, want 1h", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: "localhost:9092, broker2:9092 ,"}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v, want [localhost:9092 broker2:9092]", got)
	}

	cfg = &Config{}
	if got := cfg.KafkaBrokersList(); got != nil {
		t.Errorf("empty brokers: want nil, got %v", got)
	}
}
