package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Efrain290493/gft/internal/redeban"
	"github.com/Efrain290493/gft/internal/secrets"
	"github.com/Efrain290493/gft/internal/tokenstore"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Kafka       KafkaConfig
	Database    tokenstore.DatabaseConfig
	Secrets     secrets.Config
	Redeban     redeban.Config
	Token       TokenConfig
}

type HTTPConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// TokenConfig covers both sides of the token refresh flow: how the lookup
// service invokes the issuer, and how the issuer reaches the OAuth endpoint.
type TokenConfig struct {
	RuntimeURL string
	ListenAddr string
	Service    string
	Handler    string

	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "redeban-kyc-service"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "kyc.audit.v1"),
		},
		Secrets: secrets.Config{
			Addr:       getEnv("BAO_ADDR", "http://localhost:8200"),
			Token:      getEnv("BAO_TOKEN", ""),
			Mount:      getEnv("BAO_MOUNT", "secret"),
			SecretPath: getEnv("BAO_SECRET_PATH", "redeban/certificados"),
			Namespace:  getEnv("BAO_NAMESPACE", ""),
			CertDir:    getEnv("CERT_DIR", ""),
		},
		Token: TokenConfig{
			RuntimeURL:   getEnv("RESTATE_RUNTIME_URL", "http://127.0.0.1:8080"),
			ListenAddr:   getEnv("RESTATE_LISTEN_ADDR", ":9082"),
			Service:      getEnv("TOKEN_SERVICE_NAME", "kyc.sv1.TokenService"),
			Handler:      getEnv("TOKEN_HANDLER_NAME", "IssueToken"),
			TokenURL:     getEnv("REDEBAN_TOKEN_URL", "https://api.qa.sandboxhubredeban.com:9445/rbmcalidad/calidad/api/oauth/token"),
			ClientID:     getEnv("REDEBAN_CLIENT_ID", ""),
			ClientSecret: getEnv("REDEBAN_CLIENT_SECRET", ""),
		},
	}

	portStr := getEnv("TOKEN_DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse TOKEN_DB_PORT: %w", err)
	}

	cfg.Database = tokenstore.DatabaseConfig{
		Host:     getEnv("TOKEN_DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("TOKEN_DB_NAME", "kyc"),
		User:     getEnv("TOKEN_DB_USER", "kycadmin"),
		Password: getEnv("TOKEN_DB_PASSWORD", ""),
	}

	timeoutStr := getEnv("REDEBAN_TIMEOUT_SECONDS", "30")
	timeout, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDEBAN_TIMEOUT_SECONDS: %w", err)
	}
	retriesStr := getEnv("REDEBAN_MAX_RETRIES", "3")
	retries, err := strconv.Atoi(retriesStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDEBAN_MAX_RETRIES: %w", err)
	}

	cfg.Redeban = redeban.Config{
		BaseURL:            getEnv("REDEBAN_BASE_URL", "https://api.qa.sandboxhubredeban.com:9445"),
		APIPath:            getEnv("REDEBAN_API_PATH", "/rbmcalidad/calidad/api/kyc/v3.0.0/enterprise"),
		Timeout:            time.Duration(timeout) * time.Second,
		MaxRetries:         retries,
		InsecureSkipVerify: getEnv("REDEBAN_INSECURE_SKIP_VERIFY", "true") == "true",
		UserAgent:          getEnv("REDEBAN_USER_AGENT", "redeban-kyc-service/1.0"),
		ForwardedFor:       getEnv("REDEBAN_FORWARDED_FOR", "127.0.0.1"),
		RBMURI:             getEnv("REDEBAN_RBM_URI", "P2M"),
		RBMFrom:            getEnv("REDEBAN_RBM_FROM", "218f3105-811f-4713-9818-8c7031e43c01"),
		Geolocation:        getEnv("REDEBAN_GEOLOCATION", "+00.0000-000.0000"),
		Origin:             getEnv("REDEBAN_ORIGIN", "app.mibanco.com:8080"),
		DeviceFingerprint:  getEnv("REDEBAN_DEVICE_FINGERPRINT", ""),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
