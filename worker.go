package spindle

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Worker is a single-threaded actor bound to one spider name. It wakes on a
// self-rescheduled timer, pops one request and drives it through the
// fetch/parse/dispatch pipeline. An empty queue doubles the idle delay;
// popping a request resets it to the base, whether the pipeline succeeded
// or not.
type Worker struct {
	app     *Crawler
	spider  string
	backoff time.Duration
}

func (app *Crawler) newWorker(spider string) *Worker {
	return &Worker{
		app:     app,
		spider:  spider,
		backoff: app.engine.BaseBackoff,
	}
}

// run arms the first wake-up after the base delay and loops until ctx is
// done. A cycle always runs to completion before the timer is re-armed.
func (w *Worker) run(ctx context.Context) {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.cycle(ctx)
			timer.Reset(w.backoff)
		}
	}
}

// cycle executes one wake-up and leaves the next idle delay in w.backoff.
func (w *Worker) cycle(ctx context.Context) {
	app := w.app
	req, err := app.queue.Pop(ctx, w.spider)
	if err != nil {
		app.Logger.Error("[%s] queue pop failed: %v", w.spider, err)
		w.backoff = app.engine.BaseBackoff
		return
	}
	if req == nil {
		w.backoff *= 2
		if limit := app.engine.MaxIdleBackoff; limit > 0 && w.backoff > limit {
			w.backoff = limit
		}
		return
	}
	w.pipeline(ctx, *req)
	w.backoff = app.engine.BaseBackoff
}

func (w *Worker) pipeline(ctx context.Context, req Request) {
	app := w.app

	res, err := app.fetcher.Fetch(ctx, &req)
	if err != nil {
		app.Logger.Error("[%s] fetch failed for %s: %v", w.spider, req.Url, err)
		w.retry(ctx, req)
		return
	}
	// Success is strictly a 200, even when the fetcher reported no error.
	if res.StatusCode != http.StatusOK {
		app.Logger.Error("[%s] fetch failed for %s: %v", w.spider, req.Url,
			&FetchError{Url: req.Url, StatusCode: res.StatusCode})
		w.retry(ctx, req)
		return
	}

	if app.archive != nil {
		if err := app.archive.Save(ctx, app.Name, res); err != nil {
			app.Logger.Error("[%s] archive failed for %s: %v", w.spider, req.Url, err)
		}
	}

	parsed, err := w.parse(res)
	if err != nil {
		app.Logger.Error("[%s] %v", w.spider, &ParseError{Url: req.Url, Err: err})
		return
	}

	if err := w.dispatch(ctx, res, parsed); err != nil {
		app.Logger.Error("[%s] dispatch failed for %s: %v", w.spider, req.Url, err)
	}
}

// parse guards the spider call: an error or panic from the parsing routine
// becomes a pipeline failure, never a worker crash.
func (w *Worker) parse(res *Response) (parsed *ParsedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed, err = nil, fmt.Errorf("spider panicked: %v", r)
		}
	}()
	spider, ok := w.app.spiders[w.spider]
	if !ok {
		return nil, fmt.Errorf("no spider registered as %q", w.spider)
	}
	return spider.ParseItem(res)
}

// dispatch forwards follow-up requests to the queue and items to the sink.
// Derived requests carry the response that produced them and the fetch
// options configured at this moment, not ones cached on the worker.
func (w *Worker) dispatch(ctx context.Context, res *Response, parsed *ParsedItem) error {
	if parsed == nil {
		return nil
	}
	app := w.app
	opts := app.fetchOptions()
	for _, req := range parsed.Requests {
		req.PrevResponse = res
		req.Options = append(req.Options, opts...)
		if err := app.queue.Store(ctx, w.spider, req); err != nil {
			return err
		}
	}
	for _, item := range parsed.Items {
		if err := app.sink.Store(ctx, w.spider, item); err != nil {
			return err
		}
	}
	return nil
}

// retry re-enqueues a copy of the request with the counter incremented, or
// drops it past the bound. The comparison is deliberately <=, so a request
// gets maxRetries+1 attempts before it is dropped.
func (w *Worker) retry(ctx context.Context, req Request) {
	app := w.app
	max := app.maxRetries()
	if req.Retries > max {
		app.Logger.Info("[%s] dropped %s after %d retries (max %d)", w.spider, req.Url, req.Retries, max)
		return
	}
	next := req
	next.Retries++
	if err := app.queue.Store(ctx, w.spider, next); err != nil {
		app.Logger.Error("[%s] requeue failed for %s: %v", w.spider, req.Url, err)
		return
	}
	app.Logger.Info("[%s] scheduled retry %d for %s", w.spider, next.Retries, req.Url)
}
