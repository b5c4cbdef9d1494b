package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("accounts", []byte(`["acct1"]`))
	value, ok := c.Get("accounts")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(value) != `["acct1"]` {
		t.Errorf("value = %q", value)
	}
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("key", []byte("value"))

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("key"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after eviction, want 0", c.Len())
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
}
