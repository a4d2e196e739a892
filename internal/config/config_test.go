package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, 30*24*time.Hour, cfg.Access.TokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Stream.GrantTTL)
	assert.Equal(t, "jpy", cfg.Stripe.Currency)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Kafka.AllTopics(), 3)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "72h")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("STRIPE_CURRENCY", "USD")
	t.Setenv("PUBLIC_BASE_URL", "https://watch.example.com/")
	t.Setenv("REDIS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, 72*time.Hour, cfg.Access.TokenTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, "https://watch.example.com", cfg.PublicBaseURL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "forever")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	cfg := Load()

	assert.Equal(t, 30*24*time.Hour, cfg.Access.TokenTTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Access: AccessConfig{JWTSecret: "secret"},
		Stripe: StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec"},
		Stream: StreamConfig{SignerMode: "none"},
	}
	require.NoError(t, cfg.Validate())

	cfg.Stream.SignerMode = "token"
	assert.Error(t, cfg.Validate())

	cfg.Stream.SignerSecret = "edge"
	cfg.Access.JWTSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
}
