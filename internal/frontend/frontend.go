// Package frontend is a stand-in for the survey front-end. It serves the
// start page, accepts access codes, asks the invitee to confirm the address
// and launches the survey with a redirect to a separate host.
//
// It backs the package tests and the fake-frontend script used to try the
// load generator locally.
package frontend

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/wesleyorama2/surveyload/internal/dataset"
)

// Paths and cookie of the front-end.
const (
	StartPath   = "/en/start/"
	ConfirmPath = "/en/start/confirm-address/"

	SessionCookie = "RH_SESSION"

	// DefaultLaunchURL is where a confirmed session is sent. Its host is not
	// served by the front-end.
	DefaultLaunchURL = "https://eq.invalid/session"

	// StartPageMarker appears on the start page.
	StartPageMarker = "Start Census"
)

// Server is an http.Handler implementing the survey front-end.
type Server struct {
	records map[string]dataset.SessionRecord

	launchURL        string
	startStatus      int
	omitPostcode     bool
	noLaunchRedirect bool
	latency          time.Duration

	mu       sync.Mutex
	sessions map[string]string
	requests []string
}

// Option configures a Server.
type Option func(*Server)

// WithLaunchURL sets the survey launch URL.
func WithLaunchURL(u string) Option {
	return func(s *Server) {
		s.launchURL = u
	}
}

// WithStartStatus makes the start page answer with status code.
func WithStartStatus(code int) Option {
	return func(s *Server) {
		s.startStatus = code
	}
}

// WithoutPostcode leaves the postcode off the address confirmation page.
func WithoutPostcode() Option {
	return func(s *Server) {
		s.omitPostcode = true
	}
}

// WithoutLaunchRedirect answers the address confirmation with a page
// instead of the launch redirect.
func WithoutLaunchRedirect() Option {
	return func(s *Server) {
		s.noLaunchRedirect = true
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// New creates a front-end that knows records.
func New(records []dataset.SessionRecord, opts ...Option) *Server {
	s := &Server{
		records:   make(map[string]dataset.SessionRecord, len(records)),
		launchURL: DefaultLaunchURL,
		sessions:  make(map[string]string),
	}
	for _, r := range records {
		s.records[r.AccessCode] = r
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns the number of requests served so far.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case r.URL.Path == StartPath && r.Method == http.MethodGet:
		s.startPage(w, r)
	case r.URL.Path == StartPath && r.Method == http.MethodPost:
		s.accessCode(w, r)
	case r.URL.Path == ConfirmPath && r.Method == http.MethodPost:
		s.confirmAddress(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) startPage(w http.ResponseWriter, r *http.Request) {
	if s.startStatus != 0 && s.startStatus != http.StatusOK {
		http.Error(w, http.StatusText(s.startStatus), s.startStatus)
		return
	}

	if _, err := r.Cookie(SessionCookie); err != nil {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: newSessionID(), Path: "/", HttpOnly: true})
	}
	writeHTML(w, http.StatusOK, fmt.Sprintf(`<h1>%s</h1>
<form method="post" action="%s"><input name="uac"></form>`, StartPageMarker, StartPath))
}

func (s *Server) accessCode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, ok := s.records[r.PostForm.Get("uac")]
	if !ok {
		writeHTML(w, http.StatusUnauthorized, "<p>Enter a valid access code</p>")
		return
	}

	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		s.sessions[c.Value] = rec.AccessCode
		s.mu.Unlock()
	}

	body := "<p>Is this the correct address?</p>\n<p>" + html.EscapeString(rec.AddressLine1) + "</p>"
	if !s.omitPostcode {
		body += "\n<p>" + html.EscapeString(rec.Postcode) + "</p>"
	}
	writeHTML(w, http.StatusOK, body)
}

func (s *Server) confirmAddress(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var uac string
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		uac = s.sessions[c.Value]
		s.mu.Unlock()
	}
	if uac == "" {
		writeHTML(w, http.StatusForbidden, "<p>Your session has timed out</p>")
		return
	}

	if s.noLaunchRedirect || r.PostForm.Get("address-check-answer") != "Yes" {
		writeHTML(w, http.StatusOK, "<p>Is this the correct address?</p>")
		return
	}
	http.Redirect(w, r, s.launchURL+"?uac="+uac, http.StatusFound)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, body)
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
