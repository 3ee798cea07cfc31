package application

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RATES_CONFIG", "")
	t.Setenv("CURRENCY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Currency != "EUR" {
		t.Fatalf("expected EUR, got %s", cfg.Currency)
	}
	if len(cfg.TrainBands) != 7 {
		t.Fatalf("expected 7 default bands, got %d", len(cfg.TrainBands))
	}
	bands := cfg.Bands()
	if bands[0].MinKM != 0 || bands[len(bands)-1].MaxKM != 10000 {
		t.Fatalf("unexpected band domain: [%f,%f)", bands[0].MinKM, bands[len(bands)-1].MaxKM)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	data := []byte(`
currency: EUR
train_bands:
  - {min_km: 0, max_km: 500, percentage: 100, max_amount: 100, label: "0-500 km"}
  - {min_km: 500, max_km: 10000, percentage: 75, max_amount: 300, label: "500-10000 km"}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RATES_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.TrainBands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(cfg.TrainBands))
	}
	if cfg.TrainBands[1].Percentage != 75 {
		t.Fatalf("expected 75, got %f", cfg.TrainBands[1].Percentage)
	}
}

func TestLoadConfigRejectsGappedBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	data := []byte(`
train_bands:
  - {min_km: 0, max_km: 400, percentage: 100, max_amount: 100, label: "a"}
  - {min_km: 500, max_km: 10000, percentage: 75, max_amount: 300, label: "b"}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RATES_CONFIG", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for non-contiguous bands")
	}
}

func TestLoadConfigRejectsBadPercentage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	data := []byte(`
train_bands:
  - {min_km: 0, max_km: 10000, percentage: 140, max_amount: 100, label: "a"}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RATES_CONFIG", path)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for a percentage above 100")
	}
}
