// Package infratest builds throwaway infrastructure for package tests.
package infratest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/infra"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := infra.NewDBClient(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client.DB
}

// NewRedis starts a miniredis server bound to t's lifetime.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	rdb := infra.NewRedisClient(config.RedisConfig{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, srv
}
