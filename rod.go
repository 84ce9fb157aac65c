package spindle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher renders pages in a headless browser driven by Rod, for spiders
// that need JavaScript execution. The HTTP status is recovered from the
// NetworkResponseReceived event of the navigation.
type RodFetcher struct {
	app     *Crawler
	browser *rod.Browser
}

func NewRodFetcher(app *Crawler, proxy Proxy) (*RodFetcher, error) {
	l := launcher.New().Headless(!app.isLocalEnv).Devtools(app.isLocalEnv).NoSandbox(!app.isLocalEnv)
	if proxy.Server != "" {
		l = l.Set(flags.ProxyServer, proxy.Server)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}
	if proxy.Username != "" && proxy.Password != "" {
		go browser.MustHandleAuth(proxy.Username, proxy.Password)()
	}

	return &RodFetcher{app: app, browser: browser}, nil
}

func (f *RodFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	defer page.Close()

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: f.app.engine.UserAgent,
	})
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}

	e := proto.NetworkResponseReceived{}
	wait := page.WaitEvent(&e)
	if err := page.Timeout(f.app.engine.Timeout).Navigate(req.Url); err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	wait()
	if e.Response == nil {
		return nil, &FetchError{Url: req.Url, Err: fmt.Errorf("no response received")}
	}

	if err := page.Timeout(f.app.engine.Timeout).WaitLoad(); err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	html, err := page.HTML()
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}

	res := &Response{
		Url:         req.Url,
		StatusCode:  e.Response.Status,
		Status:      e.Response.StatusText,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
		FetchedAt:   time.Now(),
	}
	if e.Response.Status != 200 {
		return res, &FetchError{Url: req.Url, StatusCode: e.Response.Status}
	}
	return res, nil
}

func (f *RodFetcher) Close() error {
	return f.browser.Close()
}
