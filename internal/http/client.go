package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects matches the hop limit of net/http's default policy.
const DefaultMaxRedirects = 10

// ErrTooManyRedirects is returned when a redirect chain exceeds the hop limit.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// Client is a survey HTTP client holding one browser-like session.
//
// A Client keeps its cookies across requests and is meant to be owned by a
// single worker. It follows redirects only to allow-listed hosts; a redirect
// anywhere else ends the exchange with Exchange.Blocked set.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	headers      map[string]string
	allowedHosts map[string]struct{}
	maxRedirects int
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new session client with the given options.
//
// When no allowed hosts are configured the host of the base URL is allowed.
func NewClient(options ...ClientOption) (*Client, error) {
	client := &Client{
		httpClient:   &http.Client{},
		headers:      make(map[string]string),
		allowedHosts: make(map[string]struct{}),
		maxRedirects: DefaultMaxRedirects,
	}

	for _, option := range options {
		option(client)
	}

	if len(client.allowedHosts) == 0 && client.baseURL != "" {
		u, err := url.Parse(client.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		client.allowedHosts[strings.ToLower(u.Hostname())] = struct{}{}
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	client.httpClient.Jar = jar
	client.httpClient.CheckRedirect = client.checkRedirect

	return client, nil
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout. Zero means no timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithAllowedHosts sets the hosts redirects may be followed to.
func WithAllowedHosts(hosts ...string) ClientOption {
	return func(c *Client) {
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				c.allowedHosts[h] = struct{}{}
			}
		}
	}
}

// WithMaxRedirects sets the redirect hop limit.
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRedirects = n
		}
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		if !skip {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test targets
		c.httpClient.Transport = transport
	}
}

// ResetSession drops all cookies by installing a fresh jar.
// It must not be called while a request is in flight.
func (c *Client) ResetSession() error {
	jar, err := newJar()
	if err != nil {
		return err
	}

	c.httpClient.Jar = jar
	return nil
}

// CloseIdleConnections closes idle keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return jar, nil
}

// hostAllowed reports whether redirects to u may be followed.
func (c *Client) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	_, ok := c.allowedHosts[host]
	return ok
}

type blockedSlotKey struct{}

// blockedSlot carries a blocked redirect from checkRedirect back to Do.
type blockedSlot struct {
	blocked *RedirectBlocked
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= c.maxRedirects {
		return ErrTooManyRedirects
	}
	if c.hostAllowed(req.URL) {
		return nil
	}

	blocked := &RedirectBlocked{Target: req.URL, Hops: len(via)}
	if slot, ok := req.Context().Value(blockedSlotKey{}).(*blockedSlot); ok {
		slot.blocked = blocked
		return http.ErrUseLastResponse
	}
	return blocked
}

// Do executes a request and returns the exchange with timing information.
//
// A redirect to a host outside the allow list is not an error: the last
// response is returned with Blocked set.
func (c *Client) Do(ctx context.Context, req *Request) (*Exchange, error) {
	httpReq, err := req.Build(c.baseURL)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	timing := TimingInfo{
		StartTime: time.Now(),
	}

	// trace hooks may fire on dialer goroutines
	var traceMu sync.Mutex
	var dnsStart, connectStart, tlsHandshakeStart time.Time
	lastPhaseEnd := timing.StartTime

	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			traceMu.Lock()
			dnsStart = time.Now()
			traceMu.Unlock()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			traceMu.Lock()
			lastPhaseEnd = time.Now()
			timing.DNSLookupTime = lastPhaseEnd.Sub(dnsStart)
			traceMu.Unlock()
		},
		ConnectStart: func(network, addr string) {
			traceMu.Lock()
			connectStart = time.Now()
			traceMu.Unlock()
		},
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				return
			}
			traceMu.Lock()
			lastPhaseEnd = time.Now()
			timing.TCPConnectTime = lastPhaseEnd.Sub(connectStart)
			traceMu.Unlock()
		},
		TLSHandshakeStart: func() {
			traceMu.Lock()
			tlsHandshakeStart = time.Now()
			traceMu.Unlock()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			traceMu.Lock()
			lastPhaseEnd = time.Now()
			timing.TLSHandshakeTime = lastPhaseEnd.Sub(tlsHandshakeStart)
			traceMu.Unlock()
		},
		GotFirstResponseByte: func() {
			traceMu.Lock()
			timing.TimeToFirstByte = time.Since(lastPhaseEnd)
			traceMu.Unlock()
		},
	}

	slot := &blockedSlot{}
	reqCtx := context.WithValue(httptrace.WithClientTrace(ctx, trace), blockedSlotKey{}, slot)
	httpReq = httpReq.WithContext(reqCtx)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{
			Method:  httpReq.Method,
			URL:     httpReq.URL.String(),
			Elapsed: time.Since(timing.StartTime),
			Err:     err,
		}
	}
	defer httpResp.Body.Close()

	contentTransferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{
			Method:  httpReq.Method,
			URL:     httpReq.URL.String(),
			Elapsed: time.Since(timing.StartTime),
			Err:     fmt.Errorf("read response body: %w", err),
		}
	}
	traceMu.Lock()
	timing.ContentTransferTime = time.Since(contentTransferStart)
	timing.TotalTime = time.Since(timing.StartTime)
	snapshot := timing
	traceMu.Unlock()

	return &Exchange{
		Method:     httpReq.Method,
		URL:        httpReq.URL.String(),
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Elapsed:    snapshot.TotalTime,
		Timing:     snapshot,
		Blocked:    slot.blocked,
	}, nil
}
