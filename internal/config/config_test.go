package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Provider: ProviderConfig{
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
		},
		Ranking: RankingConfig{Driver: "process"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingModels(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.EmbeddingModel = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}

	cfg = validConfig()
	cfg.Provider.ChatModel = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing chat model")
	}
}

func TestValidate_InvalidRankingDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Ranking.Driver = "gpu"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid ranking driver")
	}

	expected := `ranking.driver must be "process" or "store", got "gpu"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_StoreDriverRequiresDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Ranking.Driver = "store"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for store driver without dimensions")
	}

	cfg.Provider.EmbeddingDimensions = 1536
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with dimensions set: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Provider.Name != "openai" {
		t.Errorf("expected provider name openai, got %q", cfg.Provider.Name)
	}
	if cfg.Provider.MaxInputChars != 8000 {
		t.Errorf("expected MaxInputChars=8000, got %d", cfg.Provider.MaxInputChars)
	}
	if cfg.Provider.RetryAttempts != 3 {
		t.Errorf("expected RetryAttempts=3, got %d", cfg.Provider.RetryAttempts)
	}
	if cfg.Ranking.Driver != "process" {
		t.Errorf("expected driver=process, got %q", cfg.Ranking.Driver)
	}
	if cfg.Ranking.DefaultTopK != 3 {
		t.Errorf("expected DefaultTopK=3, got %d", cfg.Ranking.DefaultTopK)
	}
	if cfg.Ranking.BackfillConcurrency != 4 {
		t.Errorf("expected BackfillConcurrency=4, got %d", cfg.Ranking.BackfillConcurrency)
	}
	if cfg.Cache.QueryCapacity != 512 {
		t.Errorf("expected QueryCapacity=512, got %d", cfg.Cache.QueryCapacity)
	}
	if cfg.Catalog.KeyPrefix != "relevo:" {
		t.Errorf("expected KeyPrefix='relevo:', got %q", cfg.Catalog.KeyPrefix)
	}
	if cfg.Catalog.IndexName != "relevo_catalog_idx" {
		t.Errorf("expected IndexName=relevo_catalog_idx, got %q", cfg.Catalog.IndexName)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 120, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Ranking:  RankingConfig{Driver: "store", DefaultTopK: 10, BackfillConcurrency: 8},
		Cache:    CacheConfig{QueryCapacity: 64},
		Catalog:  CatalogConfig{KeyPrefix: "custom:", IndexName: "custom_idx"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Ranking.Driver != "store" || cfg.Ranking.DefaultTopK != 10 {
		t.Errorf("explicit ranking config overridden: %+v", cfg.Ranking)
	}
	if cfg.Cache.QueryCapacity != 64 {
		t.Errorf("expected QueryCapacity=64, got %d", cfg.Cache.QueryCapacity)
	}
	if cfg.Catalog.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Catalog.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RELEVO_TEST_KEY", "sk-abc123")

	in := []byte("api_key: ${RELEVO_TEST_KEY}\nother: ${RELEVO_TEST_UNSET}")
	out := string(expandEnvVars(in))

	want := "api_key: sk-abc123\nother: "
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
