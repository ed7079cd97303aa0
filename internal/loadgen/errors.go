package loadgen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/surveyload/internal/dataset"
	surveyhttp "github.com/wesleyorama2/surveyload/internal/http"
)

// ValidationFailure reports a response that broke the contract of its step.
// All unmet expectations of the exchange are listed in Reasons.
type ValidationFailure struct {
	Step     Step
	Reasons  []string
	Elapsed  time.Duration
	Exchange *surveyhttp.Exchange
}

func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("Failed for %s due to: %s", f.Step, strings.Join(f.Reasons, "; "))
}

// TransportFailure reports an I/O or protocol error below the response level.
type TransportFailure struct {
	Step    Step
	Elapsed time.Duration
	Err     error
}

func (f *TransportFailure) Error() string {
	return fmt.Sprintf("Failed for %s due to: %v", f.Step, f.Err)
}

func (f *TransportFailure) Unwrap() error {
	return f.Err
}

// FatalError is the failure that stopped a run. It wraps either a
// *ValidationFailure or a *TransportFailure.
type FatalError struct {
	WorkerID int
	Index    int
	Record   dataset.SessionRecord
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("worker %d record %d (%s): %v", e.WorkerID, e.Index, e.Record.AccessCode, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Step returns the interaction step that failed, if known.
func (e *FatalError) Step() Step {
	var vf *ValidationFailure
	if errors.As(e.Err, &vf) {
		return vf.Step
	}
	var tf *TransportFailure
	if errors.As(e.Err, &tf) {
		return tf.Step
	}
	return ""
}

// IsTransport reports whether err is or wraps a transport failure.
func IsTransport(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}
