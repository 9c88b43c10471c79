package config

import "testing"

func TestValidateRequiresWarehouseDestination(t *testing.T) {
	cfg := Config{
		DBType:             "postgres",
		DBName:             "analytics",
		OrdersTable:        "orders",
		OrderProductsTable: "order_products",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing DATABASE_HOST")
	}

	cfg.DBHost = "localhost"
	cfg.DBName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing DATABASE_NAME")
	}

	cfg.DBName = "analytics"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsUnsafeTableNames(t *testing.T) {
	cfg := Config{
		DBType:             "postgres",
		DBHost:             "localhost",
		DBName:             "analytics",
		OrdersTable:        "orders; DROP TABLE orders",
		OrderProductsTable: "order_products",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsafe table name")
	}
}

func TestTuningHolderDefaults(t *testing.T) {
	var holder *TuningHolder
	got := holder.Current()
	if got.WriteAttempts != 3 {
		t.Fatalf("expected default write attempts 3, got %d", got.WriteAttempts)
	}

	holder = &TuningHolder{}
	holder.Store(Tuning{WriteAttempts: -1, MaxBodyBytes: 0, LogSnippetBytes: 0})
	got = holder.Current()
	if got != DefaultTuning() {
		t.Fatalf("expected sanitized defaults, got %+v", got)
	}
}
