package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecrets(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	tests := []struct {
		name    string
		env     string
		jwt     string
		key     string
		wantErr bool
	}{
		{"local keeps defaults", EnvLocal, DefaultSecret, DefaultSecret, false},
		{"prod with real secrets", EnvProd, "a-long-jwt-secret", "a-long-session-key", false},
		{"prod with default jwt secret", EnvProd, DefaultSecret, "a-long-session-key", true},
		{"prod with default session key", EnvProd, "a-long-jwt-secret", DefaultSecret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			t.Setenv("JWT_SECRET", tt.jwt)
			t.Setenv("KEY", tt.key)

			cfg, err := Load(missing)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakSecret)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.jwt, cfg.Auth.JWTSecret)
		})
	}
}

func TestLoadFileDefaultsInProd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prod.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: prod\nhttp:\n  address: \":9000\"\n"), 0o600))
	t.Setenv("APP_ENV", "prod")
	for _, name := range []string{"JWT_SECRET", "KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrWeakSecret)

	t.Setenv("CONFIG_PATH", path)
	assert.Panics(t, func() { MustLoad() })
}
