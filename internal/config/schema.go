// Package config provides configuration loading and validation for surveyload.
package config

import (
	"time"
)

// Config is the root configuration of a load run.
//
// Example YAML:
//
//	target:
//	  baseUrl: "https://performance-rh.int.census-gcp.onsdigital.uk"
//	  timeout: 30s
//	load:
//	  workers: 4
//	  dataFile: test_data/event_data.txt
//	  duration: 10m
//	  pacing:
//	    type: random
//	    min: 2s
//	    max: 10s
type Config struct {
	// Target describes the survey front-end under load
	Target TargetConfig `json:"target" yaml:"target"`

	// Load controls the workers and the dataset they drive
	Load LoadConfig `json:"load" yaml:"load"`

	// Checks are optional extra response checks
	Checks ChecksConfig `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Log configures diagnostic logging on stderr
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// NoColor disables colored console output
	NoColor bool `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// TargetConfig describes the front-end endpoints and HTTP behaviour.
type TargetConfig struct {
	// BaseURL is the front-end every path is resolved against
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	StartPath   string `json:"startPath,omitempty" yaml:"startPath,omitempty"`
	UACPath     string `json:"uacPath,omitempty" yaml:"uacPath,omitempty"`
	ConfirmPath string `json:"confirmPath,omitempty" yaml:"confirmPath,omitempty"`

	// AllowedHosts are the hosts redirects may be followed to.
	// Empty means the host of BaseURL only.
	AllowedHosts []string `json:"allowedHosts,omitempty" yaml:"allowedHosts,omitempty"`

	// Timeout bounds each request; 0 means no timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is sent on every request when set
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// MaxRedirects bounds the redirects followed within one exchange
	MaxRedirects int `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
}

// LoadConfig controls the workers.
type LoadConfig struct {
	// Workers is the number of concurrent sessions
	Workers int `json:"workers" yaml:"workers"`

	// DataFile is the dataset of access codes and addresses
	DataFile string `json:"dataFile" yaml:"dataFile"`

	// ReportInterval is how often progress is printed
	ReportInterval Duration `json:"reportInterval,omitempty" yaml:"reportInterval,omitempty"`

	// Duration bounds the run; 0 runs until interrupted
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Passes bounds each worker's passes over its range; 0 is unbounded
	Passes int `json:"passes,omitempty" yaml:"passes,omitempty"`

	// Rate caps session starts per second across all workers; 0 is unlimited
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// FreshSessionPerRecord drops cookies before every record
	FreshSessionPerRecord bool `json:"freshSessionPerRecord,omitempty" yaml:"freshSessionPerRecord,omitempty"`

	// Pacing is the think time between records
	Pacing PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`
}

// PacingConfig controls time between records.
type PacingConfig struct {
	// Type of pacing: "none", "constant", "random"
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Duration for constant pacing
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min and Max bound random pacing
	Min Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max Duration `json:"max,omitempty" yaml:"max,omitempty"`
}

// ChecksConfig holds optional response checks.
type ChecksConfig struct {
	// StartPageMarker must appear in the start page when set
	StartPageMarker string `json:"startPageMarker,omitempty" yaml:"startPageMarker,omitempty"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is "console" or "json"
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:      "https://performance-rh.int.census-gcp.onsdigital.uk",
			StartPath:    "/en/start/",
			UACPath:      "/en/start/",
			ConfirmPath:  "/en/start/confirm-address/",
			MaxRedirects: 10,
		},
		Load: LoadConfig{
			Workers:        2,
			DataFile:       "test_data/event_data.txt",
			ReportInterval: Duration(time.Second),
			Pacing:         PacingConfig{Type: "none"},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
