package core

import (
	"strings"
	"testing"
)

func TestNewIDOrdering(t *testing.T) {
	prev, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	for i := 0; i < 50; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %s not greater than %s", id, prev)
		}
		prev = id
	}
}

func TestHashContent(t *testing.T) {
	hash := HashContent([]byte("hello"))
	if len(hash) != 64 {
		t.Fatalf("unexpected hash length: %d", len(hash))
	}
	if hash != HashContent([]byte("hello")) {
		t.Fatal("hash not deterministic")
	}
	if hash == HashContent([]byte("hello ")) {
		t.Fatal("hash should differ for different content")
	}
	if strings.ToLower(hash) != hash {
		t.Fatal("hash should be lowercase hex")
	}
}

func TestShortForms(t *testing.T) {
	full := "0190b5e8-1234-7abc-8def-0123456789ab"
	if got := ShortID(full); got != full[len(full)-8:] {
		t.Fatalf("short id: %s", got)
	}
	hash := HashContent([]byte("x"))
	if got := ShortHash(hash); got != hash[:8] {
		t.Fatalf("short hash: %s", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Fatalf("short id of short string: %s", got)
	}
}
