package spindle

import "time"

const (
	HTTPEngine       = "http"
	RodEngine        = "rod"
	PlayWrightEngine = "playwright"
)

type Proxy struct {
	Server   string
	Username string
	Password string
}

// Engine holds per-crawler tuning. Zero values fall back to the defaults
// from getDefaultEngine.
type Engine struct {
	Adapter     string // http, rod or playwright
	BrowserType string // chromium, firefox or webkit
	WorkerCount int    // workers started per registered spider

	// BaseBackoff is the idle delay a worker starts from and resets to
	// after every cycle that popped a request. MaxIdleBackoff caps the
	// doubling during idle periods; 0 leaves it uncapped.
	BaseBackoff    time.Duration
	MaxIdleBackoff time.Duration

	MaxRetryAttempts int
	FollowRedirect   bool
	Timeout          time.Duration
	UserAgent        string
	ProxyServers     []Proxy
	CheckRobotsTxt   bool
}

func getDefaultEngine() Engine {
	return Engine{
		Adapter:          HTTPEngine,
		BrowserType:      "chromium",
		WorkerCount:      1,
		BaseBackoff:      300 * time.Millisecond,
		MaxIdleBackoff:   0,
		MaxRetryAttempts: 3,
		FollowRedirect:   false,
		Timeout:          30 * time.Second,
		UserAgent:        "spindle/1.0",
	}
}

func overrideEngineDefaults(defaultEngine *Engine, eng *Engine) {
	if eng.Adapter != "" {
		defaultEngine.Adapter = eng.Adapter
	}
	if eng.BrowserType != "" {
		defaultEngine.BrowserType = eng.BrowserType
	}
	if eng.WorkerCount > 0 {
		defaultEngine.WorkerCount = eng.WorkerCount
	}
	if eng.BaseBackoff > 0 {
		defaultEngine.BaseBackoff = eng.BaseBackoff
	}
	if eng.MaxIdleBackoff > 0 {
		defaultEngine.MaxIdleBackoff = eng.MaxIdleBackoff
	}
	if eng.MaxRetryAttempts > 0 {
		defaultEngine.MaxRetryAttempts = eng.MaxRetryAttempts
	}
	if eng.FollowRedirect {
		defaultEngine.FollowRedirect = eng.FollowRedirect
	}
	if eng.Timeout > 0 {
		defaultEngine.Timeout = eng.Timeout
	}
	if eng.UserAgent != "" {
		defaultEngine.UserAgent = eng.UserAgent
	}
	if len(eng.ProxyServers) > 0 {
		defaultEngine.ProxyServers = eng.ProxyServers
	}
	if eng.CheckRobotsTxt {
		defaultEngine.CheckRobotsTxt = eng.CheckRobotsTxt
	}
}

func (app *Crawler) SetWorkerCount(count int) *Crawler {
	app.engine.WorkerCount = count
	return app
}

func (app *Crawler) SetTimeout(timeout time.Duration) *Crawler {
	app.engine.Timeout = timeout
	return app
}

func (app *Crawler) SetMaxRetries(max int) *Crawler {
	app.engine.MaxRetryAttempts = max
	return app
}

func (app *Crawler) SetBaseBackoff(base time.Duration) *Crawler {
	app.engine.BaseBackoff = base
	return app
}

func (app *Crawler) SetAdapter(adapter string) *Crawler {
	app.engine.Adapter = adapter
	return app
}
