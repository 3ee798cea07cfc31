package application

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	reimbursement "fede-claims/internal/reimbursement/domain"
)

// BandConfig defines one train refund band in the rates file.
type BandConfig struct {
	MinKM      float64 `yaml:"min_km"`
	MaxKM      float64 `yaml:"max_km"`
	Percentage float64 `yaml:"percentage"`
	MaxAmount  float64 `yaml:"max_amount"`
	Label      string  `yaml:"label"`
}

// Config defines the rates bootstrap configuration. It only feeds the rate
// snapshot assembled at call time; the engine never reads it directly.
type Config struct {
	Currency   string       `yaml:"currency"`
	TrainBands []BandConfig `yaml:"train_bands"`
}

// LoadConfig loads the rates config from yaml or falls back to defaults.
// The file path comes from RATES_CONFIG; without it the standard train-band
// scale applies.
func LoadConfig() (Config, error) {
	cfg := Config{
		Currency: getenvDefault("CURRENCY", "EUR"),
	}

	if path := os.Getenv("RATES_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}

	if len(cfg.TrainBands) == 0 {
		for _, band := range reimbursement.DefaultTrainBands() {
			cfg.TrainBands = append(cfg.TrainBands, BandConfig{
				MinKM:      band.MinKM,
				MaxKM:      band.MaxKM,
				Percentage: band.Percentage,
				MaxAmount:  band.MaxAmount,
				Label:      band.Label,
			})
		}
	}
	if err := validateBands(cfg.TrainBands); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Bands converts the configured bands to the domain type.
func (c Config) Bands() []reimbursement.TrainBand {
	bands := make([]reimbursement.TrainBand, 0, len(c.TrainBands))
	for _, band := range c.TrainBands {
		bands = append(bands, reimbursement.TrainBand{
			MinKM:      band.MinKM,
			MaxKM:      band.MaxKM,
			Percentage: band.Percentage,
			MaxAmount:  band.MaxAmount,
			Label:      band.Label,
		})
	}
	return bands
}

// validateBands enforces the band invariants: each band is a non-empty
// half-open range, bands are contiguous, and percentages stay in (0,100].
func validateBands(bands []BandConfig) error {
	if len(bands) == 0 {
		return errors.New("rates config: no train bands")
	}
	sorted := make([]BandConfig, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinKM < sorted[j].MinKM })

	for i, band := range sorted {
		if band.MinKM < 0 || band.MaxKM <= band.MinKM {
			return fmt.Errorf("rates config: invalid band range [%.0f,%.0f)", band.MinKM, band.MaxKM)
		}
		if band.Percentage <= 0 || band.Percentage > 100 {
			return fmt.Errorf("rates config: invalid band percentage %.1f", band.Percentage)
		}
		if i > 0 && band.MinKM != sorted[i-1].MaxKM {
			return fmt.Errorf("rates config: bands not contiguous at %.0f km", band.MinKM)
		}
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
