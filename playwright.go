package spindle

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightFetcher renders pages with Playwright. It supports chromium,
// firefox and webkit, selected by Engine.BrowserType.
type PlaywrightFetcher struct {
	app     *Crawler
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightFetcher(app *Crawler, proxy Proxy) (*PlaywrightFetcher, error) {
	if !app.isLocalEnv {
		if err := playwright.Install(); err != nil {
			return nil, err
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}

	var launchOptions playwright.BrowserTypeLaunchOptions
	launchOptions.Headless = playwright.Bool(!app.isLocalEnv)
	launchOptions.Devtools = playwright.Bool(app.isLocalEnv)
	if proxy.Server != "" {
		launchOptions.Proxy = &playwright.Proxy{
			Server:   proxy.Server,
			Username: playwright.String(proxy.Username),
			Password: playwright.String(proxy.Password),
		}
	}

	var browser playwright.Browser
	switch app.engine.BrowserType {
	case "chromium":
		browser, err = pw.Chromium.Launch(launchOptions)
	case "firefox":
		browser, err = pw.Firefox.Launch(launchOptions)
	case "webkit":
		browser, err = pw.WebKit.Launch(launchOptions)
	default:
		return nil, fmt.Errorf("unsupported browser type: %s", app.engine.BrowserType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &PlaywrightFetcher{app: app, pw: pw, browser: browser}, nil
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	page, err := f.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(f.app.engine.UserAgent),
	})
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	defer page.Close()

	pwRes, err := page.Goto(req.Url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.app.engine.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}
	if pwRes == nil {
		return nil, &FetchError{Url: req.Url, Err: fmt.Errorf("no response received")}
	}

	content, err := page.Content()
	if err != nil {
		return nil, &FetchError{Url: req.Url, Err: err}
	}

	res := &Response{
		Url:         req.Url,
		StatusCode:  pwRes.Status(),
		Status:      pwRes.StatusText(),
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(content),
		FetchedAt:   time.Now(),
	}
	if pwRes.Status() != 200 {
		return res, &FetchError{Url: req.Url, StatusCode: pwRes.Status()}
	}
	return res, nil
}

func (f *PlaywrightFetcher) Close() error {
	if err := f.browser.Close(); err != nil {
		return err
	}
	return f.pw.Stop()
}
