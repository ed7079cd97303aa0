package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/surveyload/pkg/jsonschema"
)

// EnvPrefix prefixes every environment override, e.g. SURVEYLOAD_LOAD_WORKERS.
const EnvPrefix = "surveyload"

//go:embed schema.json
var schemaJSON []byte

var fileSchema = jsonschema.MustCompile("surveyload.schema.json", schemaJSON)

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"base-url":        "target.baseUrl",
	"allow-host":      "target.allowedHosts",
	"timeout":         "target.timeout",
	"insecure":        "target.insecureSkipVerify",
	"user-agent":      "target.userAgent",
	"workers":         "load.workers",
	"data-file":       "load.dataFile",
	"report-interval": "load.reportInterval",
	"duration":        "load.duration",
	"passes":          "load.passes",
	"rate":            "load.rate",
	"fresh-session":   "load.freshSessionPerRecord",
	"start-marker":    "checks.startPageMarker",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"no-color":        "noColor",
}

// Loader layers configuration sources. From lowest to highest precedence:
// built-in defaults, the YAML file, SURVEYLOAD_* environment variables and
// command-line flags that were set explicitly.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader holding only the defaults and the environment.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("target.baseUrl", d.Target.BaseURL)
	v.SetDefault("target.startPath", d.Target.StartPath)
	v.SetDefault("target.uacPath", d.Target.UACPath)
	v.SetDefault("target.confirmPath", d.Target.ConfirmPath)
	v.SetDefault("target.allowedHosts", []string{})
	v.SetDefault("target.timeout", d.Target.Timeout.Std())
	v.SetDefault("target.insecureSkipVerify", d.Target.InsecureSkipVerify)
	v.SetDefault("target.userAgent", d.Target.UserAgent)
	v.SetDefault("target.maxRedirects", d.Target.MaxRedirects)

	v.SetDefault("load.workers", d.Load.Workers)
	v.SetDefault("load.dataFile", d.Load.DataFile)
	v.SetDefault("load.reportInterval", d.Load.ReportInterval.Std())
	v.SetDefault("load.duration", d.Load.Duration.Std())
	v.SetDefault("load.passes", d.Load.Passes)
	v.SetDefault("load.rate", d.Load.Rate)
	v.SetDefault("load.freshSessionPerRecord", d.Load.FreshSessionPerRecord)
	v.SetDefault("load.pacing.type", d.Load.Pacing.Type)
	v.SetDefault("load.pacing.duration", d.Load.Pacing.Duration.Std())
	v.SetDefault("load.pacing.min", d.Load.Pacing.Min.Std())
	v.SetDefault("load.pacing.max", d.Load.Pacing.Max.Std())

	v.SetDefault("checks.startPageMarker", d.Checks.StartPageMarker)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("noColor", d.NoColor)
}

// BindFlags binds the flags of fs named in FlagKeys. Flags absent from fs
// are skipped.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// ReadFile merges the YAML file at path. The file is checked against the
// configuration schema first.
func (l *Loader) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return l.Read(data, path)
}

// Read merges a YAML document. source names it in error messages.
func (l *Loader) Read(data []byte, source string) error {
	if err := CheckDocument(data); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	l.v.SetConfigType("yaml")
	if err := l.v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", source, err)
	}
	return nil
}

// CheckDocument checks a YAML configuration document against the schema.
// Schema violations are returned as *ValidationErrors.
func CheckDocument(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if doc == nil {
		// empty file
		return nil
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	err = fileSchema.Validate(asJSON)
	var violations jsonschema.ValidationErrors
	if errors.As(err, &violations) {
		errs := &ValidationErrors{}
		for _, v := range violations {
			msg := v.Message
			if v.Value != "" {
				msg = fmt.Sprintf("%s (got %s)", msg, v.Value)
			}
			errs.Add(pointerToField(v.Location), msg)
		}
		return errs
	}
	return err
}

func pointerToField(pointer string) string {
	return strings.ReplaceAll(strings.TrimPrefix(pointer, "/"), "/", ".")
}

// Load resolves every key and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg, errs := l.decode()
	cfg.validate(errs)
	if errs.HasErrors() {
		return cfg, errs
	}
	return cfg, nil
}

// decode reads each key from viper. Values that do not convert are reported
// rather than silently zeroed.
func (l *Loader) decode() (*Config, *ValidationErrors) {
	d := &decoder{v: l.v, errs: &ValidationErrors{}}
	cfg := &Config{
		Target: TargetConfig{
			BaseURL:            d.str("target.baseUrl"),
			StartPath:          d.str("target.startPath"),
			UACPath:            d.str("target.uacPath"),
			ConfirmPath:        d.str("target.confirmPath"),
			AllowedHosts:       d.hosts("target.allowedHosts"),
			Timeout:            d.duration("target.timeout"),
			InsecureSkipVerify: d.boolean("target.insecureSkipVerify"),
			UserAgent:          d.str("target.userAgent"),
			MaxRedirects:       d.integer("target.maxRedirects"),
		},
		Load: LoadConfig{
			Workers:               d.integer("load.workers"),
			DataFile:              d.str("load.dataFile"),
			ReportInterval:        d.duration("load.reportInterval"),
			Duration:              d.duration("load.duration"),
			Passes:                d.integer("load.passes"),
			Rate:                  d.float("load.rate"),
			FreshSessionPerRecord: d.boolean("load.freshSessionPerRecord"),
			Pacing: PacingConfig{
				Type:     d.str("load.pacing.type"),
				Duration: d.duration("load.pacing.duration"),
				Min:      d.duration("load.pacing.min"),
				Max:      d.duration("load.pacing.max"),
			},
		},
		Checks: ChecksConfig{
			StartPageMarker: d.str("checks.startPageMarker"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(d.str("log.level")),
			Format: strings.ToLower(d.str("log.format")),
		},
		NoColor: d.boolean("noColor"),
	}
	return cfg, d.errs
}

type decoder struct {
	v    *viper.Viper
	errs *ValidationErrors
}

func (d *decoder) str(key string) string {
	s, err := cast.ToStringE(d.v.Get(key))
	if err != nil {
		d.errs.Add(key, err.Error())
	}
	return strings.TrimSpace(s)
}

func (d *decoder) integer(key string) int {
	n, err := cast.ToIntE(d.v.Get(key))
	if err != nil {
		d.errs.Add(key, fmt.Sprintf("invalid integer: %v", d.v.Get(key)))
	}
	return n
}

func (d *decoder) float(key string) float64 {
	f, err := cast.ToFloat64E(d.v.Get(key))
	if err != nil {
		d.errs.Add(key, fmt.Sprintf("invalid number: %v", d.v.Get(key)))
	}
	return f
}

func (d *decoder) boolean(key string) bool {
	b, err := cast.ToBoolE(d.v.Get(key))
	if err != nil {
		d.errs.Add(key, fmt.Sprintf("invalid boolean: %v", d.v.Get(key)))
	}
	return b
}

func (d *decoder) duration(key string) Duration {
	raw := d.v.Get(key)
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return 0
	}
	dur, err := cast.ToDurationE(raw)
	if err != nil {
		d.errs.Add(key, fmt.Sprintf("invalid duration: %v", raw))
	}
	return Duration(dur)
}

// hosts accepts a list, or a comma or space separated string as given in
// the environment.
func (d *decoder) hosts(key string) []string {
	list, err := cast.ToStringSliceE(d.v.Get(key))
	if err != nil {
		d.errs.Add(key, err.Error())
		return nil
	}

	var hosts []string
	for _, item := range list {
		for _, h := range strings.Split(item, ",") {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return hosts
}
