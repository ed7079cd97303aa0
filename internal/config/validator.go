package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var (
	pacingTypes = []string{"none", "constant", "random"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"console", "json"}
)

func (c *Config) validate(errs *ValidationErrors) {
	validateTarget(&c.Target, errs)
	validateLoad(&c.Load, errs)

	if !oneOf(c.Log.Level, logLevels) {
		errs.Add("log.level", fmt.Sprintf("unknown level %q, expected one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if !oneOf(c.Log.Format, logFormats) {
		errs.Add("log.format", fmt.Sprintf("unknown format %q, expected one of %s", c.Log.Format, strings.Join(logFormats, ", ")))
	}
}

func validateTarget(t *TargetConfig, errs *ValidationErrors) {
	if t.BaseURL == "" {
		errs.Add("target.baseUrl", "baseUrl is required")
	} else if u, err := url.Parse(t.BaseURL); err != nil {
		errs.Add("target.baseUrl", fmt.Sprintf("invalid URL: %v", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add("target.baseUrl", "baseUrl must be an absolute http or https URL")
	}

	paths := []struct{ field, path string }{
		{"target.startPath", t.StartPath},
		{"target.uacPath", t.UACPath},
		{"target.confirmPath", t.ConfirmPath},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.path, "/") {
			errs.Add(p.field, fmt.Sprintf("path must start with '/', got %q", p.path))
		}
	}

	for i, host := range t.AllowedHosts {
		if strings.ContainsAny(host, "/ ") {
			errs.Add(fmt.Sprintf("target.allowedHosts[%d]", i), fmt.Sprintf("%q is not a host name", host))
		}
	}

	if t.Timeout < 0 {
		errs.Add("target.timeout", "timeout cannot be negative")
	}
	if t.MaxRedirects < 1 {
		errs.Add("target.maxRedirects", "maxRedirects must be greater than 0")
	}
}

func validateLoad(l *LoadConfig, errs *ValidationErrors) {
	if l.Workers < 1 {
		errs.Add("load.workers", "workers must be greater than 0")
	}
	if l.DataFile == "" {
		errs.Add("load.dataFile", "dataFile is required")
	}
	if l.ReportInterval <= 0 {
		errs.Add("load.reportInterval", "reportInterval must be greater than 0")
	}
	if l.Duration < 0 {
		errs.Add("load.duration", "duration cannot be negative")
	}
	if l.Passes < 0 {
		errs.Add("load.passes", "passes cannot be negative")
	}
	if l.Rate < 0 {
		errs.Add("load.rate", "rate cannot be negative")
	}

	validatePacing("load.pacing", &l.Pacing, errs)
}

// validatePacing validates pacing configuration.
func validatePacing(prefix string, p *PacingConfig, errs *ValidationErrors) {
	if p.Type == "" {
		return
	}
	if !oneOf(p.Type, pacingTypes) {
		errs.Add(prefix+".type", fmt.Sprintf("unknown pacing type %q, expected one of %s", p.Type, strings.Join(pacingTypes, ", ")))
		return
	}

	switch p.Type {
	case "constant":
		if p.Duration <= 0 {
			errs.Add(prefix+".duration", "duration is required for constant pacing")
		}
	case "random":
		if p.Min < 0 {
			errs.Add(prefix+".min", "min cannot be negative")
		}
		if p.Max <= 0 {
			errs.Add(prefix+".max", "max is required for random pacing")
		} else if p.Min > p.Max {
			errs.Add(prefix+".min", "min cannot be greater than max")
		}
	}
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
