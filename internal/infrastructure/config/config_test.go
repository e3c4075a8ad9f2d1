package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"SITEKIT_APP_NAME":                os.Getenv("SITEKIT_APP_NAME"),
		"SITEKIT_APP_ENV":                 os.Getenv("SITEKIT_APP_ENV"),
		"SITEKIT_APP_PORT":                os.Getenv("SITEKIT_APP_PORT"),
		"SITEKIT_DATABASE_HOST":           os.Getenv("SITEKIT_DATABASE_HOST"),
		"SITEKIT_DATABASE_PORT":           os.Getenv("SITEKIT_DATABASE_PORT"),
		"SITEKIT_DATABASE_USER":           os.Getenv("SITEKIT_DATABASE_USER"),
		"SITEKIT_DATABASE_PASSWORD":       os.Getenv("SITEKIT_DATABASE_PASSWORD"),
		"SITEKIT_DATABASE_DBNAME":         os.Getenv("SITEKIT_DATABASE_DBNAME"),
		"SITEKIT_DATABASE_SSLMODE":        os.Getenv("SITEKIT_DATABASE_SSLMODE"),
		"SITEKIT_DATABASE_MAX_OPEN_CONNS": os.Getenv("SITEKIT_DATABASE_MAX_OPEN_CONNS"),
		"SITEKIT_DATABASE_MAX_IDLE_CONNS": os.Getenv("SITEKIT_DATABASE_MAX_IDLE_CONNS"),
		"SITEKIT_STRIPE_SECRET_KEY":       os.Getenv("SITEKIT_STRIPE_SECRET_KEY"),
		"SITEKIT_STRIPE_WEBHOOK_SECRET":   os.Getenv("SITEKIT_STRIPE_WEBHOOK_SECRET"),
		"SITEKIT_IDEMPOTENCY_TTL":         os.Getenv("SITEKIT_IDEMPOTENCY_TTL"),
		"APP_ENV":                         os.Getenv("APP_ENV"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "sitekit-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "sitekit", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "usd", cfg.Stripe.DefaultCurrency)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	})

	t.Run("loads values from environment variables with SITEKIT prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("SITEKIT_APP_NAME", "test-app")
		os.Setenv("SITEKIT_APP_ENV", "testing")
		os.Setenv("SITEKIT_APP_PORT", "9000")
		os.Setenv("SITEKIT_DATABASE_HOST", "testdb.local")
		os.Setenv("SITEKIT_DATABASE_PORT", "5433")
		os.Setenv("SITEKIT_DATABASE_USER", "testuser")
		os.Setenv("SITEKIT_DATABASE_PASSWORD", "testpass")
		os.Setenv("SITEKIT_DATABASE_DBNAME", "testdb")
		os.Setenv("SITEKIT_DATABASE_SSLMODE", "require")
		os.Setenv("SITEKIT_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("SITEKIT_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("SITEKIT_STRIPE_SECRET_KEY", "sk_test_abc")
		os.Setenv("SITEKIT_IDEMPOTENCY_TTL", "1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "sk_test_abc", cfg.Stripe.SecretKey)
		assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("SITEKIT_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("SITEKIT_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("SITEKIT_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("SITEKIT_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"SITEKIT_APP_ENV":               os.Getenv("SITEKIT_APP_ENV"),
		"SITEKIT_DATABASE_PASSWORD":     os.Getenv("SITEKIT_DATABASE_PASSWORD"),
		"SITEKIT_DATABASE_SSLMODE":      os.Getenv("SITEKIT_DATABASE_SSLMODE"),
		"SITEKIT_STRIPE_SECRET_KEY":     os.Getenv("SITEKIT_STRIPE_SECRET_KEY"),
		"SITEKIT_STRIPE_WEBHOOK_SECRET": os.Getenv("SITEKIT_STRIPE_WEBHOOK_SECRET"),
		"SITEKIT_STRIPE_IS_TEST_MODE":   os.Getenv("SITEKIT_STRIPE_IS_TEST_MODE"),
		"APP_ENV":                       os.Getenv("APP_ENV"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	// Helper to set valid production base config
	setValidProductionBase := func() {
		os.Setenv("SITEKIT_APP_ENV", "production")
		os.Setenv("SITEKIT_DATABASE_PASSWORD", "secure-password")
		os.Setenv("SITEKIT_DATABASE_SSLMODE", "require")
		os.Setenv("SITEKIT_STRIPE_SECRET_KEY", "sk_live_secret")
		os.Setenv("SITEKIT_STRIPE_WEBHOOK_SECRET", "whsec_secret")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("SITEKIT_APP_ENV", "production")
		os.Setenv("SITEKIT_DATABASE_SSLMODE", "require")
		os.Setenv("SITEKIT_STRIPE_SECRET_KEY", "sk_live_secret")
		os.Setenv("SITEKIT_STRIPE_WEBHOOK_SECRET", "whsec_secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("SITEKIT_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires stripe.secret_key in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("SITEKIT_STRIPE_SECRET_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.secret_key is required in production")
	})

	t.Run("requires stripe.webhook_secret in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("SITEKIT_STRIPE_WEBHOOK_SECRET")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.webhook_secret is required in production")
	})

	t.Run("rejects test mode in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("SITEKIT_STRIPE_IS_TEST_MODE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe.is_test_mode must be false in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
