package output

import (
	"errors"
	"fmt"
	"strings"

	surveyhttp "github.com/wesleyorama2/surveyload/internal/http"
	"github.com/wesleyorama2/surveyload/internal/loadgen"
)

// Formatter renders failure reports.
type Formatter struct {
	Colors *ColorScheme
}

// FormatFailure renders the report for the failure that stopped a run:
// the response body, one line per unmet expectation, the request time and
// the response headers.
func (f *Formatter) FormatFailure(err error) string {
	var buf strings.Builder

	var fatal *loadgen.FatalError
	if errors.As(err, &fatal) {
		buf.WriteString(f.Colors.Dim.Sprintf("worker %d stopped at record %d (uac %s)\n",
			fatal.WorkerID, fatal.Index, fatal.Record.AccessCode))
	}

	var vf *loadgen.ValidationFailure
	var tf *loadgen.TransportFailure
	switch {
	case errors.As(err, &vf):
		if vf.Exchange != nil {
			buf.WriteString(vf.Exchange.BodyString())
			buf.WriteString("\n")
		}
		for _, reason := range vf.Reasons {
			f.writeReason(&buf, vf.Step, reason)
		}
		buf.WriteString(fmt.Sprintf("Request time: %dms\n", vf.Elapsed.Milliseconds()))
		if vf.Exchange != nil {
			f.writeExchange(&buf, vf.Exchange)
		}

	case errors.As(err, &tf):
		buf.WriteString(tf.Err.Error())
		buf.WriteString("\n")
		f.writeReason(&buf, tf.Step, transportReason(tf.Err))
		buf.WriteString(fmt.Sprintf("Request time: %dms\n", tf.Elapsed.Milliseconds()))

	default:
		buf.WriteString(f.Colors.Error.Sprint(err.Error()))
		buf.WriteString("\n")
	}

	return buf.String()
}

func (f *Formatter) writeReason(buf *strings.Builder, step loadgen.Step, reason string) {
	buf.WriteString(fmt.Sprintf("Failed for %s due to: %s\n",
		f.Colors.Step.Sprint(string(step)), f.Colors.Error.Sprint(reason)))
}

// writeExchange renders the status and headers of an exchange.
func (f *Formatter) writeExchange(buf *strings.Builder, ex *surveyhttp.Exchange) {
	if ex.URL != "" {
		buf.WriteString(fmt.Sprintf("%s %s -> %s\n",
			ex.Method, f.Colors.URL.Sprint(ex.URL), f.Colors.Status(ex.StatusCode).Sprint(ex.Status)))
	}
	if ex.Blocked != nil {
		buf.WriteString(fmt.Sprintf("Redirect: %s\n", ex.Blocked.Target))
	}

	buf.WriteString("Headers:\n")
	for _, line := range ex.HeaderLines() {
		name, value, _ := strings.Cut(line, " = ")
		buf.WriteString(fmt.Sprintf("  %s = %s\n", f.Colors.HeaderKey.Sprint(name), f.Colors.HeaderValue.Sprint(value)))
	}
}

func transportReason(err error) string {
	var te *surveyhttp.TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return "request timed out"
		}
		if te.Err != nil {
			return te.Err.Error()
		}
	}
	return err.Error()
}
