package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

type Jar struct {
	*cookiejar.Jar
	Kookies []*http.Cookie `json:"cookies"`
}

func NewJar() (*Jar, error) {
	cookieJar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Jar{Jar: cookieJar}, nil
}

func (j *Jar) AddCookies(cs []*http.Cookie) {
	if j.Kookies == nil {
		j.Kookies = make([]*http.Cookie, 0, 2*len(cs))
	}
	j.Kookies = append(j.Kookies, cs...)
}

// HTTPRequest is something I should quit re-implementing over and
// over.
//
// Model hooks use these (via _.fetch) to get their data.
type HTTPRequest struct {
	Id                string      `json:"id,omitempty"`
	Method            string      `json:"method,omitempty"`
	URL               string      `json:"url"`
	Body              string      `json:"body,omitempty"`
	Headers           http.Header `json:"headers,omitempty"`
	ResponseTimeoutMS int         `json:"timeout,omitempty"`
	CookieJar         *Jar        `json:"jar,omitempty"`

	Debug bool `json:"debug,omitempty"`

	// TestResponse, if there, will be returned instead of
	// attempting a real HTTP request.
	TestResponse *HTTPResponse `json:"testResponse,omitempty"`
}

type HTTPResponse struct {
	StatusCode  int          `json:"statusCode"`
	Status      string       `json:"status"`
	Error       error        `json:"error,omitempty"`
	Headers     http.Header  `json:"headers,omitempty"`
	Body        string       `json:"body,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Request     *HTTPRequest `json:"request,omitempty"`

	// Parsed could be the Body parsed as (say) JSON.
	Parsed interface{} `json:"parsed,omitempty"`
}

func (r *HTTPRequest) logf(format string, args ...interface{}) {
	if r.Debug {
		log.Printf(format, args...)
	}
}

// Do is the low-level, synchronous method to make the request and
// call the handler with the result.
func (r *HTTPRequest) Do(ctx context.Context, handler func(context.Context, *HTTPResponse) error) error {
	if r.TestResponse != nil {
		r.TestResponse.Request = r
		return handler(ctx, r.TestResponse)
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return err
	}

	req := &http.Request{
		Method: r.Method,
		URL:    u,
		Header: r.Headers,
	}

	if r.Body != "" {
		req.Body = ioutil.NopCloser(bytes.NewReader([]byte(r.Body)))
	}

	// http.Request doesn't itself support CookieJars; instead,
	// http.Client does.  http.Client includes cached TCP
	// connections, so we shouldn't create http.Clients for each
	// request.  So we use a CookieJar manually with this request.
	//
	// ToDo: Make more correct and audit and test and audit and
	// ...

	if r.CookieJar != nil {
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		for i, cookie := range r.CookieJar.Cookies(u) {
			r.logf("adding cookie %d: %#v", i, cookie)
			req.AddCookie(cookie)
		}
	}

	req = req.WithContext(ctx)

	result := &HTTPResponse{
		Request: r,
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.logf("HTTPRequest.Do Do error %v", err)
		result.Error = err
		return handler(ctx, result)
	}

	result.Headers = resp.Header
	result.Status = resp.Status
	result.StatusCode = resp.StatusCode

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		r.logf("HTTPRequest.Do ReadAll error %v", err)
		result.Error = err
		return handler(ctx, result)
	}
	result.Body = string(body)

	if r.CookieJar != nil {
		r.logf("HTTPRequest.Do updating cookies")
		r.CookieJar.SetCookies(u, resp.Cookies())
		r.CookieJar.AddCookies(resp.Cookies())
	}

	return handler(ctx, result)
}

// Fetch is the bridge the goja handler host uses: a request map in,
// a response map out (with the body parsed as JSON when it is JSON).
func (s *Service) Fetch(ctx context.Context, req map[string]interface{}) (interface{}, error) {
	js, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	var r HTTPRequest
	if err = json.Unmarshal(js, &r); err != nil {
		return nil, err
	}
	if r.Method == "" {
		r.Method = "GET"
	}

	var out interface{}
	err = r.Do(ctx, func(_ context.Context, resp *HTTPResponse) error {
		if resp.Error != nil {
			return resp.Error
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(resp.Body), &parsed); err == nil {
			resp.Parsed = parsed
		}
		m := map[string]interface{}{
			"statusCode": resp.StatusCode,
			"status":     resp.Status,
			"body":       resp.Body,
		}
		if resp.Parsed != nil {
			m["parsed"] = resp.Parsed
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
