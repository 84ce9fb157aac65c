package spindle

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Option keys understood by the bundled fetchers. Anything else is carried
// through untouched.
const (
	OptionProxy          = "proxy"
	OptionFollowRedirect = "follow_redirect"
)

// Fetcher performs the network fetch for a request. The worker treats any
// error, and any status other than 200, as a fetch failure.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// HTTPFetcher fetches static pages over net/http. Proxy and redirect
// behavior come from the request's option pairs.
type HTTPFetcher struct {
	app    *Crawler
	client *http.Client
}

func newHTTPFetcher(app *Crawler) *HTTPFetcher {
	return &HTTPFetcher{
		app: app,
		client: &http.Client{
			Timeout:   app.engine.Timeout,
			Transport: defaultTransport(),
		},
	}
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   60 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 60 * time.Second,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if f.app.robots != nil && !f.app.robots.Allowed(req.Url) {
		return nil, &FetchError{Url: req.Url, Err: errors.New("disallowed by robots.txt")}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Url, nil)
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	httpReq.Header.Set("User-Agent", f.app.engine.UserAgent)
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Key, h.Val)
	}

	client, err := f.clientFor(req)
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}

	httpRes, err := client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}

	res := &Response{
		Url:         httpRes.Request.URL.String(),
		StatusCode:  httpRes.StatusCode,
		Status:      httpRes.Status,
		ContentType: httpRes.Header.Get("Content-Type"),
		Headers:     httpRes.Header,
		Body:        body,
		FetchedAt:   time.Now(),
	}
	if httpRes.StatusCode != http.StatusOK {
		return res, &FetchError{Url: req.Url, StatusCode: httpRes.StatusCode}
	}
	return res, nil
}

// clientFor builds a client honoring the request's proxy and redirect
// options. Requests without either reuse the shared client.
func (f *HTTPFetcher) clientFor(req *Request) (*http.Client, error) {
	follow := f.app.engine.FollowRedirect
	if v, ok := req.Option(OptionFollowRedirect); ok {
		follow = v == "true"
	}

	var proxyURL *url.URL
	if v, ok := req.Option(OptionProxy); ok && v != "" {
		withScheme, err := ensureScheme(v)
		if err != nil {
			return nil, err
		}
		proxyURL, err = url.Parse(withScheme)
		if err != nil {
			return nil, err
		}
	}

	if follow && proxyURL == nil {
		return f.client, nil
	}

	client := &http.Client{Timeout: f.client.Timeout, Transport: f.client.Transport}
	if proxyURL != nil {
		transport := defaultTransport()
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}
	if !follow {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}
