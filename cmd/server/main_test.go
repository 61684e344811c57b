package main

import (
	"context"
	"path/filepath"
	"testing"

	"smartseller/backend/internal/config"
	"smartseller/backend/internal/interpreter"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", OwnerPassword: "toko-ku-2026"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OwnerPassword: ""},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OwnerPassword: "password"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OwnerPassword: "abcdefghij"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OwnerPassword: "toko-ku-2026", CashierPassword: "toko-ku-2026"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OwnerPassword: "toko-ku-2026", CashierPassword: "kasir"},
	}
	for i, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("case %d: expected weak security config to be rejected", i)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:      "0123456789abcdef0123456789abcdef",
		OwnerPassword:   "toko-ku-2026",
		CashierPassword: "kasir-pagi-7",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	mem, err := openStore(ctx, config.Config{StoreDriver: config.StoreDriverMemory})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	products, err := mem.ListProducts(ctx)
	if err != nil || len(products) == 0 {
		t.Fatalf("expected seeded memory store, got %d products (%v)", len(products), err)
	}

	db, err := openStore(ctx, config.Config{StoreDriver: config.StoreDriverBolt, DataPath: filepath.Join(t.TempDir(), "shop.db")})
	if err != nil {
		t.Fatalf("bolt store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.ListProducts(ctx); err != nil {
		t.Fatalf("expected initialized bolt store, got %v", err)
	}

	if _, err := openStore(ctx, config.Config{StoreDriver: "sqlite"}); err == nil {
		t.Fatalf("expected unknown driver to be rejected")
	}
}

func TestNewAssistantWithoutKeyIsUnavailable(t *testing.T) {
	got := newAssistant(context.Background(), config.Config{})
	if _, ok := got.(interpreter.Unavailable); !ok {
		t.Fatalf("expected Unavailable interpreter, got %T", got)
	}
}
