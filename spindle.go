package spindle

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Crawler wires the capabilities a worker runs against: queue, sink,
// fetcher and the registered spiders. Collaborators default to in-memory
// implementations and are swapped with the Use* methods.
type Crawler struct {
	Name   string
	Config *configService
	Logger logger

	engine     *Engine
	queue      RequestQueue
	sink       ItemSink
	fetcher    Fetcher
	robots     *robotsGate
	archive    *ResponseArchive
	spiders    map[string]Spider
	isLocalEnv bool
	startedAt  time.Time
}

func NewCrawler(name string, engines ...Engine) *Crawler {
	defaultEngine := getDefaultEngine()
	if len(engines) > 0 {
		eng := engines[0]
		overrideEngineDefaults(&defaultEngine, &eng)
	}
	config := newConfig()

	crawler := &Crawler{
		Name:    name,
		Config:  config,
		engine:  &defaultEngine,
		spiders: make(map[string]Spider),
		queue:   NewMemoryQueue(),
		sink:    NewMemorySink(),
	}
	crawler.Logger = newDefaultLogger(name)
	crawler.isLocalEnv = config.GetString("APP_ENV") == "local"
	if defaultEngine.CheckRobotsTxt {
		crawler.robots = newRobotsGate(defaultEngine.UserAgent, defaultEngine.Timeout)
	}
	crawler.fetcher = newHTTPFetcher(crawler)
	return crawler
}

func (app *Crawler) UseQueue(queue RequestQueue) *Crawler {
	app.queue = queue
	return app
}

func (app *Crawler) UseSink(sink ItemSink) *Crawler {
	app.sink = sink
	return app
}

func (app *Crawler) UseFetcher(fetcher Fetcher) *Crawler {
	app.fetcher = fetcher
	return app
}

func (app *Crawler) UseArchive(archive *ResponseArchive) *Crawler {
	app.archive = archive
	return app
}

// Register binds a spider to its name. Workers started for that name invoke
// it on every fetched response.
func (app *Crawler) Register(spider Spider) *Crawler {
	app.spiders[spider.Name()] = spider
	return app
}

// Seed enqueues seed requests for a spider. Seed requests carry no lineage.
func (app *Crawler) Seed(ctx context.Context, spiderName string, urls ...string) error {
	for _, u := range urls {
		if err := app.queue.Store(ctx, spiderName, NewRequest(u)); err != nil {
			return err
		}
	}
	return nil
}

// StartWorker runs a single worker bound to the named spider until ctx is
// done. The first wake-up fires after the base idle delay.
func (app *Crawler) StartWorker(ctx context.Context, spiderName string) {
	app.newWorker(spiderName).run(ctx)
}

// Start launches Engine.WorkerCount workers per registered spider and
// blocks until ctx is done.
func (app *Crawler) Start(ctx context.Context) error {
	app.startedAt = time.Now()
	app.Logger.Info("Crawler Started! 🚀")

	if err := app.toggleFetcher(); err != nil {
		app.Logger.Error("failed to initialize fetcher: %v", err)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for name := range app.spiders {
		for i := 0; i < app.engine.WorkerCount; i++ {
			worker := app.newWorker(name)
			g.Go(func() error {
				worker.run(ctx)
				return nil
			})
		}
	}
	err := g.Wait()
	app.Stop()
	return err
}

// toggleFetcher selects the fetch adapter configured on the engine. A
// fetcher injected with UseFetcher wins over the adapter setting.
func (app *Crawler) toggleFetcher() error {
	if _, ok := app.fetcher.(*HTTPFetcher); !ok {
		return nil
	}
	var proxy Proxy
	if len(app.engine.ProxyServers) > 0 {
		proxy = app.engine.ProxyServers[0]
	}
	switch app.engine.Adapter {
	case RodEngine:
		fetcher, err := NewRodFetcher(app, proxy)
		if err != nil {
			return err
		}
		app.fetcher = fetcher
	case PlayWrightEngine:
		fetcher, err := NewPlaywrightFetcher(app, proxy)
		if err != nil {
			return err
		}
		app.fetcher = fetcher
	}
	return nil
}

func (app *Crawler) Stop() {
	if closer, ok := app.fetcher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.Logger.Error("failed to close fetcher: %v", err)
		}
	}
	app.Logger.Info("Crawler stopped in ⚡ %v", time.Since(app.startedAt))
}

// maxRetries reads the retry bound at retry time; MAX_RETRIES in the
// environment overrides the engine value.
func (app *Crawler) maxRetries() int {
	return app.Config.GetInt("MAX_RETRIES", app.engine.MaxRetryAttempts)
}

// fetchOptions snapshots the process-wide fetch configuration for requests
// derived at dispatch time.
func (app *Crawler) fetchOptions() []Option {
	follow := app.Config.GetBool("FOLLOW_REDIRECT", app.engine.FollowRedirect)
	opts := []Option{{Key: OptionFollowRedirect, Val: strconv.FormatBool(follow)}}
	if proxy := app.Config.GetString("PROXY_SERVER"); proxy != "" {
		opts = append(opts, Option{Key: OptionProxy, Val: proxy})
	}
	return opts
}
