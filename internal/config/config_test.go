package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abc")
	t.Setenv("DELIVERY_POLL_INTERVAL", "")
	t.Setenv("INSTRUCTOR_NAME", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Sarah", cfg.InstructorName)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL())
}

func TestLoadConfig_RejectsZeroPoll(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abc")
	t.Setenv("DELIVERY_POLL_INTERVAL", "0")

	_, err := LoadConfig()
	require.Error(t, err)
}
