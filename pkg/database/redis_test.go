package database

import (
	"testing"

	"dropout_risk_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "dropout:benchmark:course:c1", RedisKey("benchmark", "course", "c1"))
	assert.Equal(t, "dropout:x", RedisKey("x"))
}

func TestInitRedisUnreachable(t *testing.T) {
	// 端口0无法连接
	rdb, err := InitRedis(&config.RedisConfig{Host: "127.0.0.1", Port: 0})
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "127.0.0.1:0")
}
