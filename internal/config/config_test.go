package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "consents", cfg.MetricsNamespace)
				assert.Equal(t, "REDIRECT", cfg.ScaApproach)
				assert.Equal(t, 600*time.Second, cfg.ScaRedirectURLExpiration)
				assert.Equal(t, 3, cfg.ScaMaxFailedAttempts)
				assert.True(t, cfg.ScaConfirmationCheckByCore)
				assert.False(t, cfg.ScaConfirmationRequired)
				assert.Equal(t, 0, cfg.ConsentMaxLifetimeDays)
				assert.Equal(t, 24*time.Hour, cfg.ConsentNotConfirmedExpiration)
				assert.Equal(t, time.Hour, cfg.ExpirationSweepInterval)
				assert.Equal(t, 500, cfg.ExpirationSweepBatchSize)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":               "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/consents?parseTime=true",
				"DB_MAX_OPEN_CONNECTIONS": "50",
				"DB_CONN_MAX_LIFETIME":    "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/consents?parseTime=true", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
		{
			name: "load crypto provider configuration",
			envVars: map[string]string{
				"CRYPTO_PROVIDERS":        "gcm-v1:aes-gcm:PBKDF2WithHmacSHA256:65536:256",
				"CRYPTO_PASSWORDS":        "gcm-v1:c2VjcmV0",
				"CRYPTO_DATA_PROVIDER_ID": "gcm-v1",
				"CRYPTO_ID_PROVIDER_ID":   "gcm-v1",
				"KMS_PROVIDER":            "localsecrets",
				"KMS_KEY_URI":             "base64key://abc",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "gcm-v1:aes-gcm:PBKDF2WithHmacSHA256:65536:256", cfg.CryptoProviders)
				assert.Equal(t, "gcm-v1:c2VjcmV0", cfg.CryptoPasswords)
				assert.Equal(t, "gcm-v1", cfg.CryptoDataProviderID)
				assert.Equal(t, "gcm-v1", cfg.CryptoIDProviderID)
				assert.Equal(t, "localsecrets", cfg.KMSProvider)
				assert.Equal(t, "base64key://abc", cfg.KMSKeyURI)
			},
		},
		{
			name: "load sca and consent configuration",
			envVars: map[string]string{
				"SCA_APPROACH":                             "EMBEDDED",
				"SCA_MAX_FAILED_ATTEMPTS":                  "5",
				"SCA_CONFIRMATION_REQUIRED":                "true",
				"SCA_CONFIRMATION_CHECK_BY_CORE":           "false",
				"CONSENT_MAX_LIFETIME_DAYS":                "90",
				"CONSENT_NOT_CONFIRMED_EXPIRATION_SECONDS": "60",
				"EXPIRATION_SWEEP_INTERVAL_SECONDS":        "30",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "EMBEDDED", cfg.ScaApproach)
				assert.Equal(t, 5, cfg.ScaMaxFailedAttempts)
				assert.True(t, cfg.ScaConfirmationRequired)
				assert.False(t, cfg.ScaConfirmationCheckByCore)
				assert.Equal(t, 90, cfg.ConsentMaxLifetimeDays)
				assert.Equal(t, time.Minute, cfg.ConsentNotConfirmedExpiration)
				assert.Equal(t, 30*time.Second, cfg.ExpirationSweepInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg := Load()
			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{logLevel: "debug", expected: "debug"},
		{logLevel: "info", expected: "release"},
		{logLevel: "error", expected: "release"},
		{logLevel: "unknown", expected: "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
