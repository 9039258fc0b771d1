package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("NOTIFIER_WORKERS", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 4, cfg.NotifierWorkers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "ccmart.order.events", cfg.KafkaTopic)
}

func TestLoadAPI_RequiredPort(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "")

	_, err := LoadAPI()
	assert.EqualError(t, err, "PORT is required")
}

func TestLoadAPI_RequiredJWTSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadAPI()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoad_InvalidNumber(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("POSTGRES_PORT", "abc")

	_, err := Load()
	assert.ErrorContains(t, err, "POSTGRES_PORT must be number")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_TTL", "1day")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_TTL must be duration")
}

func TestLoad_MySQLNeedsDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "MYSQL_DSN is required")
}

func TestLoad_UnknownDriver(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_DRIVER must be postgres or mysql")
}

func TestLoad_KafkaBrokersSplit(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadNotifier_NeedsNoHTTPSettings(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := LoadNotifier()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "ccmart-notifier", cfg.KafkaGroupID)
}

func TestLoadNotifier_Required(t *testing.T) {
	setBaseEnv(t)

	_, err := LoadNotifier()
	assert.EqualError(t, err, "KAFKA_BROKERS is required")

	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("NOTIFIER_WORKERS", "0")
	_, err = LoadNotifier()
	assert.EqualError(t, err, "NOTIFIER_WORKERS must be >= 1")
}
