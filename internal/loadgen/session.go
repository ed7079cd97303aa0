package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	surveyhttp "github.com/wesleyorama2/surveyload/internal/http"
)

// Step names one exchange of the survey interaction.
type Step string

const (
	// StepStart fetches the start page.
	StepStart Step = "GET_start"
	// StepAccessCode submits the invitee's access code.
	StepAccessCode Step = "POST_Uac"
	// StepLaunch confirms the address, which launches the survey.
	StepLaunch Step = "Launch"
)

// Form fields and values posted by the interaction.
const (
	FieldAccessCode    = "uac"
	FieldAddressCheck  = "address-check-answer"
	AddressCheckAnswer = "Yes"
)

// Session performs HTTP exchanges within one browser-like session.
// *surveyhttp.Client implements it.
type Session interface {
	Do(ctx context.Context, req *surveyhttp.Request) (*surveyhttp.Exchange, error)
	ResetSession() error
}

// Recorder receives the latency and outcome of every exchange.
// *metrics.Engine implements it.
type Recorder interface {
	Record(step string, duration time.Duration, ok bool)
}

// DriverOptions configures the interaction endpoints and checks.
type DriverOptions struct {
	StartPath   string
	UACPath     string
	ConfirmPath string

	// StartPageMarker, when set, must appear in the start page body.
	StartPageMarker string

	// FreshSessionPerRecord drops the session's cookies before each record.
	// By default one session is reused for every record a worker handles.
	FreshSessionPerRecord bool
}

// DefaultDriverOptions returns the endpoints of the survey front-end.
func DefaultDriverOptions() DriverOptions {
	return DriverOptions{
		StartPath:   "/en/start/",
		UACPath:     "/en/start/",
		ConfirmPath: "/en/start/confirm-address/",
	}
}

// SessionDriver runs the three-step interaction for one record at a time.
//
// Each exchange increments the shared counter exactly once, whatever its
// outcome. The first failing step ends the interaction; later steps are
// not attempted.
type SessionDriver struct {
	session  Session
	counter  *Counter
	recorder Recorder
	opts     DriverOptions
}

// NewSessionDriver creates a driver. recorder may be nil.
func NewSessionDriver(session Session, counter *Counter, recorder Recorder, opts DriverOptions) *SessionDriver {
	return &SessionDriver{
		session:  session,
		counter:  counter,
		recorder: recorder,
		opts:     opts,
	}
}

// Run performs the interaction for rec. It returns a *ValidationFailure or
// a *TransportFailure on the first problem.
func (d *SessionDriver) Run(ctx context.Context, rec dataset.SessionRecord) error {
	if d.opts.FreshSessionPerRecord {
		if err := d.session.ResetSession(); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
	}

	if err := d.fetchStartPage(ctx); err != nil {
		return err
	}
	if err := d.submitAccessCode(ctx, rec); err != nil {
		return err
	}
	return d.launchSurvey(ctx)
}

func (d *SessionDriver) fetchStartPage(ctx context.Context) error {
	ex, err := d.exchange(ctx, StepStart, surveyhttp.NewRequest(http.MethodGet, d.opts.StartPath))
	if err != nil {
		return err
	}

	var reasons []string
	if ex.StatusCode != http.StatusOK {
		reasons = append(reasons, expectedOK(ex.StatusCode))
	}
	if d.opts.StartPageMarker != "" && !strings.Contains(ex.BodyString(), d.opts.StartPageMarker) {
		reasons = append(reasons, fmt.Sprintf("Response doesn't contain '%s'", d.opts.StartPageMarker))
	}
	return d.verdict(StepStart, ex, reasons)
}

func (d *SessionDriver) submitAccessCode(ctx context.Context, rec dataset.SessionRecord) error {
	req := surveyhttp.NewFormPost(d.opts.UACPath, FieldAccessCode, rec.AccessCode)
	ex, err := d.exchange(ctx, StepAccessCode, req)
	if err != nil {
		return err
	}

	body := ex.BodyString()
	address := EscapeAddress(rec.AddressLine1)

	var reasons []string
	if ex.StatusCode != http.StatusOK {
		reasons = append(reasons, expectedOK(ex.StatusCode))
	}
	if !strings.Contains(body, address) {
		reasons = append(reasons, fmt.Sprintf("Response doesn't contain address '%s'", address))
	}
	if !strings.Contains(body, rec.Postcode) {
		reasons = append(reasons, fmt.Sprintf("Response doesn't contain postcode '%s'", rec.Postcode))
	}
	return d.verdict(StepAccessCode, ex, reasons)
}

// launchSurvey succeeds only when the front-end redirects to a host the
// client will not follow, which is where the survey itself lives.
func (d *SessionDriver) launchSurvey(ctx context.Context) error {
	req := surveyhttp.NewFormPost(d.opts.ConfirmPath, FieldAddressCheck, AddressCheckAnswer)
	ex, err := d.exchange(ctx, StepLaunch, req)
	if err != nil {
		var tf *TransportFailure
		if errors.Is(err, surveyhttp.ErrTooManyRedirects) && errors.As(err, &tf) {
			return &ValidationFailure{
				Step:    StepLaunch,
				Reasons: []string{tf.Err.Error()},
				Elapsed: tf.Elapsed,
			}
		}
		return err
	}

	var reasons []string
	if ex.Blocked == nil {
		reasons = append(reasons, "didn't get redirect error")
	}
	return d.verdict(StepLaunch, ex, reasons)
}

// exchange performs one request, counts it and records transport failures.
func (d *SessionDriver) exchange(ctx context.Context, step Step, req *surveyhttp.Request) (*surveyhttp.Exchange, error) {
	start := time.Now()
	ex, err := d.session.Do(ctx, req)
	d.counter.Inc()

	if err != nil {
		elapsed := time.Since(start)
		d.record(step, elapsed, false)
		return nil, &TransportFailure{Step: step, Elapsed: elapsed, Err: err}
	}
	return ex, nil
}

func (d *SessionDriver) verdict(step Step, ex *surveyhttp.Exchange, reasons []string) error {
	d.record(step, ex.Elapsed, len(reasons) == 0)
	if len(reasons) == 0 {
		return nil
	}
	return &ValidationFailure{
		Step:     step,
		Reasons:  reasons,
		Elapsed:  ex.Elapsed,
		Exchange: ex,
	}
}

func (d *SessionDriver) record(step Step, elapsed time.Duration, ok bool) {
	if d.recorder != nil {
		d.recorder.Record(string(step), elapsed, ok)
	}
}

func expectedOK(got int) string {
	return fmt.Sprintf("Expected 200 but got: %d", got)
}

// EscapeAddress renders an address line the way the front-end's HTML does,
// with single quotes as &#39;.
func EscapeAddress(address string) string {
	return strings.ReplaceAll(address, "'", "&#39;")
}
