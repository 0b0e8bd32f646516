package cache

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKeyIsStable(t *testing.T) {
	a := Key("https://example.org/a.csv")
	if a != Key("https://example.org/a.csv") {
		t.Fatalf("expected stable key")
	}
	if a == Key("https://example.org/b.csv") {
		t.Fatalf("expected distinct keys")
	}
	if !strings.HasPrefix(a, keyPrefix) || len(a) != len(keyPrefix)+64 {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, Options{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, Options{Addr: addr, TTL: time.Second, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
	})

	src := "https://example.org/roundtrip-" + time.Now().Format("150405.000000000") + ".csv"
	if _, ok, err := r.Get(ctx, src); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := r.Set(ctx, src, []byte("1|2\n")); err != nil {
		t.Fatalf("set: %v", err)
	}
	data, ok, err := r.Get(ctx, src)
	if err != nil || !ok || string(data) != "1|2\n" {
		t.Fatalf("expected cached body, got %q ok=%v err=%v", data, ok, err)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, ok, err := r.Get(ctx, src); err != nil || ok {
		t.Fatalf("expected expiry, got ok=%v err=%v", ok, err)
	}
}
