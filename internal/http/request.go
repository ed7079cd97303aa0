package http

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request represents an HTTP request
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Form    url.Values
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

// NewFormPost creates a POST carrying a single URL-encoded form field.
func NewFormPost(path, field, value string) *Request {
	return NewRequest(http.MethodPost, path).WithFormValue(field, value)
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithFormValue adds a URL-encoded form field.
func (r *Request) WithFormValue(key, value string) *Request {
	if r.Form == nil {
		r.Form = make(url.Values)
	}
	r.Form.Add(key, value)
	return r
}

// Build constructs an http.Request from the Request.
//
// An absolute Path is used as is; a relative one is joined to baseURL.
func (r *Request) Build(baseURL string) (*http.Request, error) {
	reqURL, err := r.resolve(baseURL)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	contentType := ""
	if len(r.Form) > 0 {
		bodyReader = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequest(r.Method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func (r *Request) resolve(baseURL string) (*url.URL, error) {
	target, err := url.Parse(r.Path)
	if err != nil {
		return nil, err
	}
	if target.IsAbs() || baseURL == "" {
		return target, nil
	}

	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	// Join the base URL path with the request path
	if reqURL.Path == "" {
		reqURL.Path = target.Path
	} else {
		reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
	}
	reqURL.RawQuery = target.RawQuery

	return reqURL, nil
}
