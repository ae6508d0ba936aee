// Package config provides the configuration options used to run occlusiond,
// read from environment variables with sane defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names read by [FromEnv].
const (
	EnvDataSource            = "OCCLUSION_DATA_SOURCE"
	EnvReloadIntervalMinutes = "OCCLUSION_RELOAD_INTERVAL_MINUTES"
	EnvMaxFailures           = "OCCLUSION_MAX_FAILURES"
	EnvOnMaxFailures         = "OCCLUSION_ON_MAX_FAILURES"
	EnvJSONLogs              = "OCCLUSION_JSON_LOGS"
	EnvHTTPTimeoutSeconds    = "OCCLUSION_HTTP_TIMEOUT_SECONDS"
	EnvVariant               = "OCCLUSION_VARIANT"
	EnvListenAddr            = "OCCLUSION_LISTEN_ADDR"
)

// scheduler.
const (
	// DefaultReloadInterval is how often the data source is polled for
	// changes, by default.
	DefaultReloadInterval = 5 * time.Minute
	// DefaultMaxFailures is the number of consecutive reload failures at
	// which the terminal policy kicks in, by default. Zero
	// means unlimited: the scheduler retries forever and never applies
	// OnMaxFailures.
	DefaultMaxFailures = 0
	// DefaultOnMaxFailures is the terminal policy applied once MaxFailures
	// consecutive failures are reached, by default.
	DefaultOnMaxFailures = OnMaxFailuresShutdown
)

// loader/client.
const (
	// DefaultHTTPTimeout is the total timeout for a single source fetch, by default.
	DefaultHTTPTimeout = 30 * time.Second
)

// index.
const (
	// DefaultVariant is the Index implementation used when none is configured.
	DefaultVariant = VariantHashmap
)

// server.
const (
	// DefaultListenAddr is the address the HTTP server listens on, by default.
	DefaultListenAddr = ":8080"
)

// OnMaxFailures names the terminal policy applied once the reload scheduler
// reaches its configured number of consecutive failures.
type OnMaxFailures string

const (
	// OnMaxFailuresShutdown exits the process.
	OnMaxFailuresShutdown OnMaxFailures = "shutdown"
	// OnMaxFailuresClear empties the store and keeps retrying.
	OnMaxFailuresClear OnMaxFailures = "clear"
)

// Variant names an Index implementation.
type Variant string

const (
	VariantHashmap    Variant = "hashmap"
	VariantSorted     Variant = "sorted"
	VariantHybrid     Variant = "hybrid"
	VariantStratified Variant = "stratified"
)

// Opts are the options used to configure occlusiond.
type Opts struct {
	// DataSource is a file path or http(s) URL pointing at the CSV data source.
	DataSource string

	ReloadInterval time.Duration
	MaxFailures    int
	OnMaxFailures  OnMaxFailures

	JSONLogs bool

	HTTPTimeout time.Duration

	Variant Variant

	ListenAddr string
}

func (o Opts) String() string {
	return fmt.Sprintf(
		"config.Opts{DataSource: %q, ReloadInterval: %s, MaxFailures: %d, OnMaxFailures: %q, JSONLogs: %v, HTTPTimeout: %s, Variant: %q, ListenAddr: %q}",
		o.DataSource, o.ReloadInterval, o.MaxFailures, o.OnMaxFailures, o.JSONLogs, o.HTTPTimeout, o.Variant, o.ListenAddr,
	)
}

// GoString implements [fmt.GoStringer].
func (o Opts) GoString() string { return o.String() }

// FromEnv builds an [Opts] from environment variables, applying defaults for
// anything unset. It returns an error if a set variable cannot be parsed or
// fails validation.
func FromEnv() (Opts, error) {
	o := Opts{
		DataSource:     os.Getenv(EnvDataSource),
		ReloadInterval: DefaultReloadInterval,
		MaxFailures:    DefaultMaxFailures,
		OnMaxFailures:  DefaultOnMaxFailures,
		HTTPTimeout:    DefaultHTTPTimeout,
		Variant:        DefaultVariant,
		ListenAddr:     DefaultListenAddr,
	}

	if v := os.Getenv(EnvReloadIntervalMinutes); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return Opts{}, fmt.Errorf("config: %s: %w", EnvReloadIntervalMinutes, err)
		}
		o.ReloadInterval = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv(EnvMaxFailures); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Opts{}, fmt.Errorf("config: %s: %w", EnvMaxFailures, err)
		}
		o.MaxFailures = n
	}

	if v := os.Getenv(EnvOnMaxFailures); v != "" {
		o.OnMaxFailures = OnMaxFailures(v)
	}

	if v := os.Getenv(EnvJSONLogs); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Opts{}, fmt.Errorf("config: %s: %w", EnvJSONLogs, err)
		}
		o.JSONLogs = b
	}

	if v := os.Getenv(EnvHTTPTimeoutSeconds); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return Opts{}, fmt.Errorf("config: %s: %w", EnvHTTPTimeoutSeconds, err)
		}
		o.HTTPTimeout = time.Duration(secs) * time.Second
	}

	if v := os.Getenv(EnvVariant); v != "" {
		o.Variant = Variant(v)
	}

	if v := os.Getenv(EnvListenAddr); v != "" {
		o.ListenAddr = v
	}

	if err := o.validate(); err != nil {
		return Opts{}, err
	}

	return o, nil
}

func (o Opts) validate() error {
	if o.DataSource == "" {
		return fmt.Errorf("config: %s is required", EnvDataSource)
	}
	if err := validateOnMaxFailures(o.OnMaxFailures); err != nil {
		return err
	}
	if err := validateVariant(o.Variant); err != nil {
		return err
	}
	if o.MaxFailures < 0 {
		return fmt.Errorf("config: %s must be >= 0, got %d", EnvMaxFailures, o.MaxFailures)
	}
	if o.ReloadInterval <= 0 {
		return fmt.Errorf("config: %s must be > 0, got %s", EnvReloadIntervalMinutes, o.ReloadInterval)
	}
	if o.HTTPTimeout <= 0 {
		return fmt.Errorf("config: %s must be > 0, got %s", EnvHTTPTimeoutSeconds, o.HTTPTimeout)
	}
	return nil
}
