package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"chatdesk/backend/internal/platform/apperr"
)

const testEncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes

// setRequired clears the environment and sets the values Load refuses to start without.
func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	t.Setenv("ENCRYPTION_KEY", testEncryptionKey)
	t.Setenv("SESSION_PRIVATE_KEY", "/etc/chatdesk/session.key")
	t.Setenv("SESSION_PUBLIC_KEY", "/etc/chatdesk/session.pub")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.SessionIssuer != "chatdesk-auth" {
		t.Errorf("SessionIssuer = %q, want %q", cfg.SessionIssuer, "chatdesk-auth")
	}
	if cfg.SessionAudience != "chatdesk-api" {
		t.Errorf("SessionAudience = %q, want %q", cfg.SessionAudience, "chatdesk-api")
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL())
	}
	if cfg.StorageTimeout() != 3*time.Second {
		t.Errorf("StorageTimeout = %v, want 3s", cfg.StorageTimeout())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.PolicyEngine != "static" {
		t.Errorf("PolicyEngine = %q, want static", cfg.PolicyEngine)
	}
	if cfg.EventsKafkaTopic != "chatdesk-conversation-events" {
		t.Errorf("EventsKafkaTopic = %q, want default", cfg.EventsKafkaTopic)
	}
	if cfg.KafkaBrokersList() != nil {
		t.Errorf("KafkaBrokersList = %v, want nil", cfg.KafkaBrokersList())
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("GRPC_ADDR", ":9090")
	t.Setenv("SESSION_TTL", "8h")
	t.Setenv("STORAGE_TIMEOUT", "750ms")
	t.Setenv("POLICY_ENGINE", "rego")
	t.Setenv("BCRYPT_COST", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.SessionTTL() != 8*time.Hour {
		t.Errorf("SessionTTL = %v, want 8h", cfg.SessionTTL())
	}
	if cfg.StorageTimeout() != 750*time.Millisecond {
		t.Errorf("StorageTimeout = %v, want 750ms", cfg.StorageTimeout())
	}
	if cfg.PolicyEngine != "rego" {
		t.Errorf("PolicyEngine = %q, want rego", cfg.PolicyEngine)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
}

func TestLoad_MissingKeyMaterialIsConfigurationError(t *testing.T) {
	testCases := []struct {
		name  string
		unset string
		value string
	}{
		{"no encryption key", "ENCRYPTION_KEY", ""},
		{"encryption key not base64", "ENCRYPTION_KEY", "not base64!"},
		{"encryption key too short", "ENCRYPTION_KEY", "c2hvcnQta2V5"},
		{"no session private key", "SESSION_PRIVATE_KEY", ""},
		{"no session public key", "SESSION_PUBLIC_KEY", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.unset, tc.value)

			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should fail")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Errorf("err = %v, want configuration error", err)
			}
		})
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"SESSION_TTL", "STORAGE_TIMEOUT"} {
		for _, value := range []string{"invalid", "0", "-5m"} {
			t.Run(key+"="+value, func(t *testing.T) {
				setRequired(t)
				t.Setenv(key, value)
				if _, err := Load(); err == nil {
					t.Fatalf("Load should reject %s=%q", key, value)
				}
			})
		}
	}
}

func TestLoad_UnknownPolicyEngine(t *testing.T) {
	setRequired(t)
	t.Setenv("POLICY_ENGINE", "wildcard")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown POLICY_ENGINE")
	}
}

func TestSecrets_DecodesKey(t *testing.T) {
	cfg := &Config{EncryptionKey: testEncryptionKey, SessionPrivateKey: "a", SessionPublicKey: "b"}
	s, err := cfg.Secrets()
	if err != nil {
		t.Fatalf("Secrets: %v", err)
	}
	if string(s.EncryptionKey) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("EncryptionKey = %q", s.EncryptionKey)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	cfg := &Config{KafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
