package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadParsesRenewalCategories(t *testing.T) {
	t.Setenv("RENEWAL_CATEGORIES", "membership, training , ")

	cfg := Load()
	if len(cfg.RenewalCategories) != 2 {
		t.Fatalf("expected 2 categories, got %v", cfg.RenewalCategories)
	}
	if cfg.RenewalCategories[0] != "membership" || cfg.RenewalCategories[1] != "training" {
		t.Fatalf("unexpected categories %v", cfg.RenewalCategories)
	}
}

func TestLoadClampsBadNumbers(t *testing.T) {
	t.Setenv("SHIFT_CACHE_TTL_SECONDS", "nope")
	t.Setenv("RENEWAL_QUEUE_SIZE", "-3")

	cfg := Load()
	if cfg.ShiftCacheTTLSeconds != 15 {
		t.Fatalf("expected default TTL 15, got %d", cfg.ShiftCacheTTLSeconds)
	}
	if cfg.RenewalQueueSize != 64 {
		t.Fatalf("expected default queue size 64, got %d", cfg.RenewalQueueSize)
	}
}
