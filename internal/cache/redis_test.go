package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "http://localhost:6379", time.Hour); err == nil {
		t.Fatal("NewRedisCache() expected error for non-redis scheme")
	}
}

func TestDecode(t *testing.T) {
	got, err := decode([]byte(`{"Qty":"total_quantity"}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if diff := cmp.Diff(map[string]string{"Qty": "total_quantity"}, got); diff != "" {
		t.Errorf("decode() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{`null`, `[1]`, `{"a":1}`, `nope`} {
		if _, err := decode([]byte(bad)); err == nil {
			t.Errorf("decode(%q) expected error", bad)
		}
	}
}
