package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisMock struct {
	redis.Cmdable
	data map[string][]byte
}

func newRedisMock() *redisMock {
	return &redisMock{data: make(map[string][]byte)}
}

func (m *redisMock) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (m *redisMock) Get(ctx context.Context, key string) *redis.StringCmd {
	val, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(val), nil)
}

func (m *redisMock) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestCache(t *testing.T) {
	c := New(newRedisMock(), "reports")

	_, hit, err := c.Get(context.Background(), "daily")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.Set(context.Background(), "daily", []byte(`[{"revenue":"19.00"}]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, hit, err := c.Get(context.Background(), "daily")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after Set")
	}
	if !bytes.Equal(val, []byte(`[{"revenue":"19.00"}]`)) {
		t.Errorf("value = %s", val)
	}

	if err := c.Delete(context.Background(), "daily"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(context.Background(), "daily"); hit {
		t.Error("expected miss after Delete")
	}
}

func TestCacheKeysAreNamespaced(t *testing.T) {
	m := newRedisMock()
	c := New(m, "reports")

	if err := c.Set(context.Background(), "daily", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := m.data["reports:daily"]; !ok {
		t.Errorf("stored keys = %v, want reports:daily", m.data)
	}
}
