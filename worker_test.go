package spindle

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  []Request
	stored   []Request
	popErr   error
	storeErr error
}

func (q *fakeQueue) Pop(ctx context.Context, spider string) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.pending) == 0 {
		return nil, nil
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return &req, nil
}

func (q *fakeQueue) Store(ctx context.Context, spider string, req Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.storeErr != nil {
		return q.storeErr
	}
	q.stored = append(q.stored, req)
	return nil
}

type fakeFetcher struct {
	fn func(req *Request) (*Response, error)
}

func (f fakeFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f.fn(req)
}

type fakeSpider struct {
	name string
	fn   func(res *Response) (*ParsedItem, error)
}

func (s fakeSpider) Name() string {
	return s.name
}

func (s fakeSpider) ParseItem(res *Response) (*ParsedItem, error) {
	return s.fn(res)
}

func okFetcher(status int) fakeFetcher {
	return fakeFetcher{fn: func(req *Request) (*Response, error) {
		res := &Response{Url: req.Url, StatusCode: status, Body: []byte("body")}
		if status != http.StatusOK {
			return res, &FetchError{Url: req.Url, StatusCode: status}
		}
		return res, nil
	}}
}

func newTestCrawler(t *testing.T) (*Crawler, *fakeQueue, *MemorySink) {
	t.Helper()
	engine := getDefaultEngine()
	queue := &fakeQueue{}
	sink := NewMemorySink()
	app := &Crawler{
		Name:    "test",
		Config:  newConfig(),
		Logger:  &defaultLogger{logger: log.New(io.Discard, "", 0)},
		engine:  &engine,
		spiders: make(map[string]Spider),
		queue:   queue,
		sink:    sink,
	}
	app.fetcher = okFetcher(http.StatusOK)
	app.Register(fakeSpider{name: "sp", fn: func(res *Response) (*ParsedItem, error) {
		return &ParsedItem{}, nil
	}})
	return app, queue, sink
}

func TestWorkerIdleBackoffDoubles(t *testing.T) {
	app, _, _ := newTestCrawler(t)
	w := app.newWorker("sp")

	want := []time.Duration{
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
	}
	for i, wantBackoff := range want {
		w.cycle(context.Background())
		if w.backoff != wantBackoff {
			t.Errorf("cycle %d: backoff = %v, want %v", i+1, w.backoff, wantBackoff)
		}
	}
}

func TestWorkerIdleBackoffCap(t *testing.T) {
	app, _, _ := newTestCrawler(t)
	app.engine.MaxIdleBackoff = time.Second
	w := app.newWorker("sp")

	for i := 0; i < 5; i++ {
		w.cycle(context.Background())
	}
	if w.backoff != time.Second {
		t.Errorf("backoff = %v, want cap %v", w.backoff, time.Second)
	}
}

func TestWorkerBackoffResetsAfterPop(t *testing.T) {
	tests := []struct {
		name    string
		fetcher Fetcher
		spider  func(res *Response) (*ParsedItem, error)
	}{
		{
			name:    "pipeline success",
			fetcher: okFetcher(http.StatusOK),
			spider:  func(res *Response) (*ParsedItem, error) { return &ParsedItem{}, nil },
		},
		{
			name:    "fetch failure",
			fetcher: okFetcher(http.StatusInternalServerError),
			spider:  func(res *Response) (*ParsedItem, error) { return &ParsedItem{}, nil },
		},
		{
			name:    "parse failure",
			fetcher: okFetcher(http.StatusOK),
			spider:  func(res *Response) (*ParsedItem, error) { return nil, errors.New("bad page") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, queue, _ := newTestCrawler(t)
			app.fetcher = tt.fetcher
			app.Register(fakeSpider{name: "sp", fn: tt.spider})
			queue.pending = []Request{NewRequest("http://x/1")}

			w := app.newWorker("sp")
			w.backoff = 2400 * time.Millisecond
			w.cycle(context.Background())

			if w.backoff != app.engine.BaseBackoff {
				t.Errorf("backoff = %v, want base %v", w.backoff, app.engine.BaseBackoff)
			}
		})
	}
}

func TestWorkerRetryOnFetchFailure(t *testing.T) {
	app, queue, sink := newTestCrawler(t)
	app.fetcher = okFetcher(http.StatusInternalServerError)
	queue.pending = []Request{NewRequest("http://x/1")}

	w := app.newWorker("sp")
	w.cycle(context.Background())

	if len(queue.stored) != 1 {
		t.Fatalf("stored %d requests, want 1", len(queue.stored))
	}
	got := queue.stored[0]
	if got.Url != "http://x/1" {
		t.Errorf("requeued url = %q, want %q", got.Url, "http://x/1")
	}
	if got.Retries != 1 {
		t.Errorf("requeued retries = %d, want 1", got.Retries)
	}
	if items := sink.Items("sp"); len(items) != 0 {
		t.Errorf("sink received %d items, want 0", len(items))
	}
}

func TestWorkerNon200WithoutErrorIsFetchFailure(t *testing.T) {
	app, queue, _ := newTestCrawler(t)
	// A fetcher may report no error for a non-200; the worker still treats
	// anything but 200 as failure.
	app.fetcher = fakeFetcher{fn: func(req *Request) (*Response, error) {
		return &Response{Url: req.Url, StatusCode: http.StatusNotFound}, nil
	}}
	queue.pending = []Request{NewRequest("http://x/missing")}

	w := app.newWorker("sp")
	w.cycle(context.Background())

	if len(queue.stored) != 1 || queue.stored[0].Retries != 1 {
		t.Fatalf("stored = %+v, want one requeue with retries 1", queue.stored)
	}
}

// The retry comparison is retries <= max, so a request reaches max+1
// attempts before it is dropped. The boundary is intentional and pinned
// here.
func TestRetryPolicyBoundary(t *testing.T) {
	tests := []struct {
		retries     int
		wantRequeue bool
	}{
		{retries: 0, wantRequeue: true},
		{retries: 2, wantRequeue: true},
		{retries: 3, wantRequeue: true},
		{retries: 4, wantRequeue: false},
		{retries: 10, wantRequeue: false},
	}
	for _, tt := range tests {
		app, queue, _ := newTestCrawler(t)
		req := NewRequest("http://x/1")
		req.Retries = tt.retries

		w := app.newWorker("sp")
		w.retry(context.Background(), req)

		if tt.wantRequeue {
			if len(queue.stored) != 1 {
				t.Errorf("retries=%d: stored %d, want 1", tt.retries, len(queue.stored))
				continue
			}
			if got := queue.stored[0].Retries; got != tt.retries+1 {
				t.Errorf("retries=%d: requeued counter = %d, want %d", tt.retries, got, tt.retries+1)
			}
		} else if len(queue.stored) != 0 {
			t.Errorf("retries=%d: stored %d, want drop", tt.retries, len(queue.stored))
		}
	}
}

func TestWorkerParseFailureIsNotRetried(t *testing.T) {
	app, queue, sink := newTestCrawler(t)
	app.Register(fakeSpider{name: "sp", fn: func(res *Response) (*ParsedItem, error) {
		return nil, errors.New("unexpected page structure")
	}})
	queue.pending = []Request{NewRequest("http://x/1")}

	w := app.newWorker("sp")
	w.cycle(context.Background())

	if len(queue.stored) != 0 {
		t.Errorf("stored %d requests, want 0 (parse failures are dropped)", len(queue.stored))
	}
	if items := sink.Items("sp"); len(items) != 0 {
		t.Errorf("sink received %d items, want 0", len(items))
	}
}

func TestWorkerParsePanicIsContained(t *testing.T) {
	app, queue, sink := newTestCrawler(t)
	app.Register(fakeSpider{name: "sp", fn: func(res *Response) (*ParsedItem, error) {
		panic("spider bug")
	}})
	queue.pending = []Request{NewRequest("http://x/1")}

	w := app.newWorker("sp")
	w.cycle(context.Background())

	if len(queue.stored) != 0 || len(sink.Items("sp")) != 0 {
		t.Error("panicking spider must not dispatch anything")
	}
	if w.backoff != app.engine.BaseBackoff {
		t.Errorf("backoff = %v, want base after contained panic", w.backoff)
	}
}

func TestWorkerUnregisteredSpiderDropsRequest(t *testing.T) {
	app, queue, _ := newTestCrawler(t)
	queue.pending = []Request{NewRequest("http://x/1")}

	w := app.newWorker("ghost")
	w.cycle(context.Background())

	if len(queue.stored) != 0 {
		t.Errorf("stored %d requests, want 0", len(queue.stored))
	}
}

func TestWorkerDispatch(t *testing.T) {
	app, queue, sink := newTestCrawler(t)
	app.Register(fakeSpider{name: "sp", fn: func(res *Response) (*ParsedItem, error) {
		return &ParsedItem{
			Requests: []Request{NewRequest("http://x/2"), NewRequest("http://x/3")},
			Items:    []Map{{"title": "first"}},
		}, nil
	}})
	queue.pending = []Request{NewRequest("http://x/1")}

	w := app.newWorker("sp")
	w.cycle(context.Background())

	if len(queue.stored) != 2 {
		t.Fatalf("stored %d requests, want 2", len(queue.stored))
	}
	wantUrls := []string{"http://x/2", "http://x/3"}
	for i, req := range queue.stored {
		if req.Url != wantUrls[i] {
			t.Errorf("request %d url = %q, want %q", i, req.Url, wantUrls[i])
		}
		if req.PrevResponse == nil || req.PrevResponse.Url != "http://x/1" {
			t.Errorf("request %d is missing its lineage response", i)
		}
		if _, ok := req.Option(OptionFollowRedirect); !ok {
			t.Errorf("request %d is missing the follow_redirect option", i)
		}
	}

	items := sink.Items("sp")
	if len(items) != 1 {
		t.Fatalf("sink received %d items, want 1", len(items))
	}
	if items[0]["title"] != "first" {
		t.Errorf("item = %v, want title=first", items[0])
	}
}

func TestWorkerPopErrorKeepsWorkerAlive(t *testing.T) {
	app, queue, _ := newTestCrawler(t)
	queue.popErr = errors.New("connection reset")

	w := app.newWorker("sp")
	w.backoff = 2400 * time.Millisecond
	w.cycle(context.Background())

	if w.backoff != app.engine.BaseBackoff {
		t.Errorf("backoff = %v, want base after pop error", w.backoff)
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	app, _, _ := newTestCrawler(t)
	app.engine.BaseBackoff = time.Millisecond
	w := app.newWorker("sp")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	app, queue, sink := newTestCrawler(t)
	app.engine.BaseBackoff = time.Millisecond
	app.Register(fakeSpider{name: "sp", fn: func(res *Response) (*ParsedItem, error) {
		return &ParsedItem{Items: []Map{{"url": res.Url}}}, nil
	}})
	queue.pending = []Request{NewRequest("http://x/1"), NewRequest("http://x/2")}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w := app.newWorker("sp")
	w.run(ctx)

	if items := sink.Items("sp"); len(items) != 2 {
		t.Errorf("sink received %d items, want 2", len(items))
	}
}
