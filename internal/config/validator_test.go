package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_Default(t *testing.T) {
	if err := checkConfig(Default()); err != nil {
		t.Errorf("validate returned error for default config: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
		errMsg string
	}{
		{
			name:   "zero workers",
			modify: func(c *Config) { c.Load.Workers = 0 },
			field:  "load.workers",
			errMsg: "greater than 0",
		},
		{
			name:   "missing data file",
			modify: func(c *Config) { c.Load.DataFile = "" },
			field:  "load.dataFile",
			errMsg: "required",
		},
		{
			name:   "relative base url",
			modify: func(c *Config) { c.Target.BaseURL = "example.com/en" },
			field:  "target.baseUrl",
			errMsg: "absolute",
		},
		{
			name:   "path without slash",
			modify: func(c *Config) { c.Target.ConfirmPath = "en/start/confirm-address/" },
			field:  "target.confirmPath",
			errMsg: "must start with '/'",
		},
		{
			name:   "host with path",
			modify: func(c *Config) { c.Target.AllowedHosts = []string{"example.com/launch"} },
			field:  "target.allowedHosts[0]",
			errMsg: "not a host name",
		},
		{
			name:   "zero redirects",
			modify: func(c *Config) { c.Target.MaxRedirects = 0 },
			field:  "target.maxRedirects",
			errMsg: "greater than 0",
		},
		{
			name:   "zero report interval",
			modify: func(c *Config) { c.Load.ReportInterval = 0 },
			field:  "load.reportInterval",
			errMsg: "greater than 0",
		},
		{
			name:   "negative rate",
			modify: func(c *Config) { c.Load.Rate = -1 },
			field:  "load.rate",
			errMsg: "negative",
		},
		{
			name:   "negative passes",
			modify: func(c *Config) { c.Load.Passes = -1 },
			field:  "load.passes",
			errMsg: "negative",
		},
		{
			name:   "unknown pacing",
			modify: func(c *Config) { c.Load.Pacing.Type = "poisson" },
			field:  "load.pacing.type",
			errMsg: "unknown pacing type",
		},
		{
			name:   "constant pacing without duration",
			modify: func(c *Config) { c.Load.Pacing = PacingConfig{Type: "constant"} },
			field:  "load.pacing.duration",
			errMsg: "required",
		},
		{
			name: "random pacing min above max",
			modify: func(c *Config) {
				c.Load.Pacing = PacingConfig{Type: "random", Min: Duration(5 * time.Second), Max: Duration(time.Second)}
			},
			field:  "load.pacing.min",
			errMsg: "greater than max",
		},
		{
			name:   "unknown log level",
			modify: func(c *Config) { c.Log.Level = "trace" },
			field:  "log.level",
			errMsg: "unknown level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := checkConfig(cfg)
			if err == nil {
				t.Fatal("validate should return error")
			}

			verrs, ok := err.(*ValidationErrors)
			if !ok {
				t.Fatalf("validate returned %T, want *ValidationErrors", err)
			}
			if len(verrs.Errors) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(verrs.Errors), err)
			}
			if verrs.Errors[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", verrs.Errors[0].Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Error should contain %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Load.Workers = 0
	cfg.Load.DataFile = ""
	cfg.Log.Format = "xml"

	err := checkConfig(cfg)
	if err == nil {
		t.Fatal("validate should return error")
	}
	verrs := err.(*ValidationErrors)
	if len(verrs.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verrs.Errors), err)
	}
	if !strings.HasPrefix(err.Error(), "3 validation errors:") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.Error() != "no validation errors" {
		t.Errorf("empty Error() = %q", errs.Error())
	}
	errs.Add("", "broken")
	if errs.Error() != "validation error: broken" {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func checkConfig(c *Config) error {
	errs := &ValidationErrors{}
	c.validate(errs)
	if errs.HasErrors() {
		return errs
	}
	return nil
}
