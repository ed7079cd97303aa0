package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// TimingInfo contains the phases of one exchange
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
}

// Exchange is the result of one request/response round trip.
type Exchange struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration
	Timing     TimingInfo

	// Blocked is set when the server redirected to a host outside the
	// allow list. The other fields then describe the redirect response.
	Blocked *RedirectBlocked
}

// BodyString returns the response body as a string
func (e *Exchange) BodyString() string {
	return string(e.Body)
}

// HeaderLines returns "name = value" pairs sorted by header name.
func (e *Exchange) HeaderLines() []string {
	names := make([]string, 0, len(e.Headers))
	for name := range e.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		for _, value := range e.Headers[name] {
			lines = append(lines, name+" = "+value)
		}
	}
	return lines
}

// RedirectBlocked reports a redirect whose target host is not allowed.
type RedirectBlocked struct {
	Target *url.URL
	Hops   int
}

// Host returns the blocked target host.
func (b *RedirectBlocked) Host() string {
	if b.Target == nil {
		return ""
	}
	return b.Target.Host
}

func (b *RedirectBlocked) Error() string {
	return fmt.Sprintf("redirect to untrusted host %q blocked", b.Host())
}

// TransportError wraps a failure below the HTTP response level.
type TransportError struct {
	Method  string
	URL     string
	Elapsed time.Duration
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
