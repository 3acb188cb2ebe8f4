// Package config defines the data structures related to configuration and
// includes functions for loading, defaulting, and validating the config.
package config

import (
	"fmt"

	"github.com/assetfin/quote-engine/internal/eligibility"
	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for the quote engine and its shell.
type Configuration struct {
	Rates       []RateEntry
	Fees        []FeeEntry
	Quote       QuoteConfig       `yaml:"quote,omitempty"`
	Eligibility EligibilityConfig `yaml:"eligibility,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Server      ServerConfig      `yaml:"server,omitempty"`
	Storage     StorageConfig     `yaml:"storage,omitempty"`
	Cache       CacheConfig       `yaml:"cache,omitempty"`
	Reload      ReloadConfig      `yaml:"reload,omitempty"`
}

// RateEntry is one term bracket of the rate table.
type RateEntry struct {
	TermMonths  int
	RatePercent float64
}

// FeeEntry is one fee line of the fee schedule.
type FeeEntry struct {
	Name        string
	Description string
	AmountCents int64
	AppliesWhen string
}

// QuoteConfig holds quote computation parameters.
type QuoteConfig struct {
	ReferenceMarkupPercent float64 `yaml:"referenceMarkupPercent,omitempty"`
	MinLoanAmount          float64 `yaml:"minLoanAmount,omitempty"`
	MaxLoanAmount          float64 `yaml:"maxLoanAmount,omitempty"`
	MinTermMonths          int     `yaml:"minTermMonths,omitempty"`
	MaxTermMonths          int     `yaml:"maxTermMonths,omitempty"`
	MaxBalloonPercent      float64 `yaml:"maxBalloonPercent,omitempty"`
}

// EligibilityConfig holds the thresholds of the rule battery.
type EligibilityConfig struct {
	MinABNAgeMonths       int     `yaml:"minAbnAgeMonths,omitempty"`
	MaxBalloonPercent     float64 `yaml:"maxBalloonPercent,omitempty"`
	MaxAssetAgeYears      int     `yaml:"maxAssetAgeYears,omitempty"`
	MinBusinessUsePercent float64 `yaml:"minBusinessUsePercent,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Address      string `yaml:"address,omitempty"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes,omitempty"`
}

// StorageConfig holds lead store options. An empty SQLitePath selects the
// in-memory store.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlitePath,omitempty"`
}

// CacheConfig holds quote cache options. An empty RedisAddr disables the
// Redis cache in favor of the in-memory one.
type CacheConfig struct {
	RedisAddr string `yaml:"redisAddr,omitempty"`
}

// ReloadConfig controls the scheduled rate table reload.
type ReloadConfig struct {
	CronSpec string `yaml:"cronSpec,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there, then applies defaults.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	v.SetConfigType("yml")

	// Defaulted here rather than in ApplyDefaults so an explicit 0 in the
	// file survives load and trips the zero-markup warning.
	v.SetDefault("quote.referenceMarkupPercent", constants.DefaultReferenceMarkupPercent)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	err := v.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	configuration.ApplyDefaults()
	return &configuration, nil
}

// ApplyDefaults fills unset fields with the standard values. The reference
// markup is defaulted at load time instead: 0 is a meaningful configured
// value there, not an unset one.
func (conf *Configuration) ApplyDefaults() {
	if conf.Quote.MinLoanAmount == 0 {
		conf.Quote.MinLoanAmount = constants.MinLoanAmount
	}
	if conf.Quote.MaxLoanAmount == 0 {
		conf.Quote.MaxLoanAmount = constants.MaxLoanAmount
	}
	if conf.Quote.MinTermMonths == 0 {
		conf.Quote.MinTermMonths = constants.MinTermMonths
	}
	if conf.Quote.MaxTermMonths == 0 {
		conf.Quote.MaxTermMonths = constants.MaxTermMonths
	}
	if conf.Quote.MaxBalloonPercent == 0 {
		conf.Quote.MaxBalloonPercent = constants.MaxBalloonPercent
	}
	if conf.Eligibility.MinABNAgeMonths == 0 {
		conf.Eligibility.MinABNAgeMonths = constants.DefaultMinABNAgeMonths
	}
	if conf.Eligibility.MaxBalloonPercent == 0 {
		conf.Eligibility.MaxBalloonPercent = constants.DefaultMaxEligibleBalloonPercent
	}
	if conf.Eligibility.MaxAssetAgeYears == 0 {
		conf.Eligibility.MaxAssetAgeYears = constants.DefaultMaxAssetAgeYears
	}
	if conf.Eligibility.MinBusinessUsePercent == 0 {
		conf.Eligibility.MinBusinessUsePercent = constants.DefaultMinBusinessUsePercent
	}
	if conf.Server.Address == "" {
		conf.Server.Address = constants.DefaultServerAddress
	}
	if conf.Server.MaxBodyBytes == 0 {
		conf.Server.MaxBodyBytes = constants.DefaultMaxBodySizeBytes
	}
}

// Validate returns an error for configuration the engine cannot run with.
func (conf *Configuration) Validate() error {
	if len(conf.Rates) == 0 {
		return fmt.Errorf("no rates configured")
	}
	for _, entry := range conf.Rates {
		if entry.TermMonths <= 0 {
			return fmt.Errorf("rate term must be positive, got %d", entry.TermMonths)
		}
		if entry.RatePercent < 0 {
			return fmt.Errorf("rate for term %d must be non-negative, got %.2f", entry.TermMonths, entry.RatePercent)
		}
	}
	for _, fee := range conf.Fees {
		if fee.AmountCents < 0 {
			return fmt.Errorf("fee %q amount must be non-negative, got %d", fee.Name, fee.AmountCents)
		}
	}
	if conf.Quote.MinLoanAmount >= conf.Quote.MaxLoanAmount {
		return fmt.Errorf("quote.minLoanAmount must be below quote.maxLoanAmount")
	}
	if conf.Quote.MinTermMonths >= conf.Quote.MaxTermMonths {
		return fmt.Errorf("quote.minTermMonths must be below quote.maxTermMonths")
	}
	return nil
}

// Warnings performs advisory validation and returns human-readable warnings
// for anything suspicious but survivable.
func (conf *Configuration) Warnings() []string {
	var warnings []string

	for i := 1; i < len(conf.Rates); i++ {
		if conf.Rates[i].TermMonths <= conf.Rates[i-1].TermMonths {
			warnings = append(warnings, fmt.Sprintf("rate table terms are not in ascending order: term %d follows term %d",
				conf.Rates[i].TermMonths, conf.Rates[i-1].TermMonths))
		}
		if conf.Rates[i].RatePercent > conf.Rates[i-1].RatePercent && conf.Rates[i].TermMonths > conf.Rates[i-1].TermMonths {
			warnings = append(warnings, fmt.Sprintf("rate for term %d (%.2f%%) is above the rate for shorter term %d (%.2f%%)",
				conf.Rates[i].TermMonths, conf.Rates[i].RatePercent, conf.Rates[i-1].TermMonths, conf.Rates[i-1].RatePercent))
		}
	}

	for _, fee := range conf.Fees {
		if fee.Description == "" {
			warnings = append(warnings, fmt.Sprintf("fee %q has no description", fee.Name))
		}
		switch fee.AppliesWhen {
		case "", ratetable.AppliesAlways, ratetable.AppliesPrivateSaleOnly:
		default:
			warnings = append(warnings, fmt.Sprintf("fee %q has unknown predicate %q and will never apply", fee.Name, fee.AppliesWhen))
		}
	}

	if conf.Quote.ReferenceMarkupPercent <= 0 {
		warnings = append(warnings, "quote.referenceMarkupPercent is not positive; estimated savings will always be zero")
	}

	return warnings
}

// BuildTable constructs the rate table snapshot from the configuration.
func (conf *Configuration) BuildTable() (*ratetable.Table, error) {
	entries := make([]ratetable.Entry, 0, len(conf.Rates))
	for _, entry := range conf.Rates {
		entries = append(entries, ratetable.Entry{
			TermMonths:  entry.TermMonths,
			RatePercent: entry.RatePercent,
		})
	}

	fees := make([]ratetable.Fee, 0, len(conf.Fees))
	for _, fee := range conf.Fees {
		fees = append(fees, ratetable.Fee{
			Name:        fee.Name,
			Description: fee.Description,
			AmountCents: fee.AmountCents,
			AppliesWhen: fee.AppliesWhen,
		})
	}

	return ratetable.New(entries, fees)
}

// QuoteBounds converts the configuration into engine bounds.
func (conf *Configuration) QuoteBounds() quote.Bounds {
	return quote.Bounds{
		MinLoanAmount:     conf.Quote.MinLoanAmount,
		MaxLoanAmount:     conf.Quote.MaxLoanAmount,
		MinTermMonths:     conf.Quote.MinTermMonths,
		MaxTermMonths:     conf.Quote.MaxTermMonths,
		MaxBalloonPercent: conf.Quote.MaxBalloonPercent,
	}
}

// EligibilityRules converts the configuration into gate rules. Loan bounds
// are shared with the quote side except the tighter eligibility balloon cap.
func (conf *Configuration) EligibilityRules() eligibility.Rules {
	return eligibility.Rules{
		MinABNAgeMonths:       conf.Eligibility.MinABNAgeMonths,
		MinLoanAmount:         conf.Quote.MinLoanAmount,
		MaxLoanAmount:         conf.Quote.MaxLoanAmount,
		MinTermMonths:         conf.Quote.MinTermMonths,
		MaxTermMonths:         conf.Quote.MaxTermMonths,
		MaxBalloonPercent:     conf.Eligibility.MaxBalloonPercent,
		MaxAssetAgeYears:      conf.Eligibility.MaxAssetAgeYears,
		MinBusinessUsePercent: conf.Eligibility.MinBusinessUsePercent,
	}
}
