package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 100, cfg.RateLimit.PerMinute)
	assert.Equal(t, 365, cfg.Consent.DefaultConsentDays)
	assert.Equal(t, "consent.audit", cfg.Kafka.AuditTopic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.UsesDevEmailHashKey())
	assert.True(t, cfg.MetricsEnabled)
}

func TestOverrides(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"KAFKA_BROKERS":         "k1:9092, k2:9092,",
		"RATE_LIMIT_PER_MINUTE": 5,
		"EMAIL_HASH_KEY":        "prod-key",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
	assert.False(t, cfg.UsesDevEmailHashKey())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{"consent days out of range", map[string]any{"DEFAULT_CONSENT_DAYS": 0}, "DEFAULT_CONSENT_DAYS"},
		{"proof without secret", map[string]any{"REQUIRE_EMAIL_PROOF": true}, "EMAIL_PROOF_SECRET"},
		{"non-positive rate limit", map[string]any{"RATE_LIMIT_PER_MINUTE": 0}, "RATE_LIMIT_PER_MINUTE"},
		{"empty body limit", map[string]any{"MAX_BODY_BYTES": 0}, "MAX_BODY_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newViper(tt.overrides))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("disabled rate limit tolerates zero", func(t *testing.T) {
		_, err := fromViper(newViper(map[string]any{"RATE_LIMIT_PER_MINUTE": 0, "RATE_LIMIT_DISABLED": true}))
		assert.NoError(t, err)
	})
}
