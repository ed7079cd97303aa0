package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wesleyorama2/surveyload/internal/config"
	"github.com/wesleyorama2/surveyload/internal/dataset"
	surveyhttp "github.com/wesleyorama2/surveyload/internal/http"
	"github.com/wesleyorama2/surveyload/internal/loadgen"
	"github.com/wesleyorama2/surveyload/internal/logging"
	"github.com/wesleyorama2/surveyload/internal/output"
)

func newRunCmd() *cobra.Command {
	var (
		configFile string
		summary    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the front-end until interrupted or a session fails",
		Long: `Run partitions the dataset across the workers and has each worker walk
its slice in order, wrapping to the start of the slice after the last record.

A progress line is printed every report interval:

  Progress update: <total exchanges> +<exchanges since the previous line>

The run stops on the first failed session, printing what went wrong, or when
interrupted. Configuration is read from --config, SURVEYLOAD_* environment
variables and flags, in increasing precedence.

  surveyload run --data-file test_data/event_data.txt --workers 20
  surveyload run -c load.yaml --duration 10m --summary json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, configFile, summary)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	cmd.Flags().StringVar(&summary, "summary", string(output.SummaryText), "End-of-run summary format (text, json, yaml)")
	addConfigFlags(cmd.Flags())

	return cmd
}

// addConfigFlags registers a flag for every key in config.FlagKeys. Flag
// defaults only document the built-in values; unset flags never override
// the file or the environment.
func addConfigFlags(fs *pflag.FlagSet) {
	d := config.Default()

	fs.String("base-url", d.Target.BaseURL, "Front-end base URL")
	fs.StringSlice("allow-host", nil, "Host redirects may be followed to (repeatable, default: host of --base-url)")
	fs.Duration("timeout", d.Target.Timeout.Std(), "Per-request timeout (0 disables)")
	fs.Bool("insecure", false, "Skip TLS certificate verification")
	fs.String("user-agent", "", "User-Agent header sent with every request")

	fs.IntP("workers", "w", d.Load.Workers, "Number of concurrent workers")
	fs.StringP("data-file", "f", d.Load.DataFile, "Dataset of access codes and addresses")
	fs.Duration("report-interval", d.Load.ReportInterval.Std(), "Interval between progress lines")
	fs.DurationP("duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	fs.Int("passes", 0, "Stop each worker after this many passes over its records (0 is unbounded)")
	fs.Float64("rate", 0, "Cap on sessions started per second across all workers (0 is unlimited)")
	fs.Bool("fresh-session", false, "Drop cookies before every record")
	fs.String("start-marker", "", "Text the start page must contain")

	fs.String("log-level", d.Log.Level, "Diagnostic log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "Diagnostic log format (console, json)")
	fs.Bool("no-color", false, "Disable colored output")
}

// loadConfig layers defaults, the optional file, the environment and flags.
func loadConfig(fs *pflag.FlagSet, configFile string) (*config.Config, error) {
	loader := config.NewLoader()
	if err := loader.BindFlags(fs); err != nil {
		return nil, err
	}
	if configFile != "" {
		if err := loader.ReadFile(configFile); err != nil {
			return nil, err
		}
	}
	return loader.Load()
}

func runLoad(cmd *cobra.Command, configFile, summary string) error {
	format, err := output.ParseSummaryFormat(summary)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.Flags(), configFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	records, err := dataset.Load(cfg.Load.DataFile)
	if err != nil {
		return err
	}
	if err := dataset.Require(records); err != nil {
		return fmt.Errorf("%s: %w", cfg.Load.DataFile, err)
	}
	logger.Debug("dataset loaded", zap.String("file", cfg.Load.DataFile), zap.Int("records", len(records)))

	// A document summary owns stdout; run output moves to stderr.
	consoleOut := cmd.OutOrStdout()
	if format != output.SummaryText {
		consoleOut = cmd.ErrOrStderr()
	}
	console := output.NewConsole(output.ConsoleConfig{
		Writer:  consoleOut,
		NoColor: cfg.NoColor,
	})

	runner := loadgen.NewRunner(records, loadOptions(cfg), sessionFactory(cfg),
		loadgen.WithObserver(console),
		loadgen.WithLogger(logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := runner.Run(ctx)
	if res == nil {
		return runErr
	}

	var fatal *loadgen.FatalError
	if errors.As(runErr, &fatal) {
		console.Failure(runErr)
	}

	if format == output.SummaryText {
		console.Summary(res, runErr != nil)
	} else if err := output.WriteSummary(cmd.OutOrStdout(), output.NewSummary(res, runErr), format); err != nil {
		return err
	}

	return runErr
}

// loadOptions converts the configuration into runner options.
func loadOptions(cfg *config.Config) loadgen.Options {
	opts := loadgen.Options{
		Workers:        cfg.Load.Workers,
		Duration:       cfg.Load.Duration.Std(),
		MaxPasses:      cfg.Load.Passes,
		Rate:           cfg.Load.Rate,
		ReportInterval: cfg.Load.ReportInterval.Std(),
		Driver: loadgen.DriverOptions{
			StartPath:             cfg.Target.StartPath,
			UACPath:               cfg.Target.UACPath,
			ConfirmPath:           cfg.Target.ConfirmPath,
			StartPageMarker:       cfg.Checks.StartPageMarker,
			FreshSessionPerRecord: cfg.Load.FreshSessionPerRecord,
		},
	}

	if p := cfg.Load.Pacing; p.Type != "" && p.Type != string(loadgen.PacingNone) {
		opts.Pacing = &loadgen.Pacing{
			Type:     loadgen.PacingType(p.Type),
			Duration: p.Duration.Std(),
			Min:      p.Min.Std(),
			Max:      p.Max.Std(),
		}
	}
	return opts
}

// sessionFactory gives every worker its own client, and so its own cookie
// jar and connection pool.
func sessionFactory(cfg *config.Config) loadgen.SessionFactory {
	options := []surveyhttp.ClientOption{
		surveyhttp.WithBaseURL(cfg.Target.BaseURL),
		surveyhttp.WithTimeout(cfg.Target.Timeout.Std()),
		surveyhttp.WithAllowedHosts(cfg.Target.AllowedHosts...),
		surveyhttp.WithMaxRedirects(cfg.Target.MaxRedirects),
		surveyhttp.WithInsecureSkipVerify(cfg.Target.InsecureSkipVerify),
	}
	if cfg.Target.UserAgent != "" {
		options = append(options, surveyhttp.WithHeader("User-Agent", cfg.Target.UserAgent))
	}

	return func(workerID int) (loadgen.Session, error) {
		client, err := surveyhttp.NewClient(options...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
