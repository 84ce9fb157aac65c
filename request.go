package spindle

import "time"

type Map map[string]interface{}

// Header is one (name, value) pair sent with a fetch. Order matters for
// reproducibility, duplicates are allowed.
type Header struct {
	Key string `json:"key" bson:"key"`
	Val string `json:"val" bson:"val"`
}

// Option is an opaque (key, value) configuration pair passed through to the
// Fetcher, e.g. proxy or follow_redirect.
type Option struct {
	Key string `json:"key" bson:"key"`
	Val string `json:"val" bson:"val"`
}

// Request describes one unit of fetch work for a spider.
type Request struct {
	Url          string    `json:"url" bson:"url"`
	Headers      []Header  `json:"headers" bson:"headers"`
	Options      []Option  `json:"options" bson:"options"`
	PrevResponse *Response `json:"-" bson:"-"`
	// Retries never decreases; the worker increments it on every requeue
	// after a failed fetch.
	Retries int `json:"retries" bson:"retries"`
}

func NewRequest(url string) Request {
	return Request{Url: url}
}

// WithHeader returns a copy of the request with the header appended.
func (r Request) WithHeader(key, val string) Request {
	headers := make([]Header, len(r.Headers), len(r.Headers)+1)
	copy(headers, r.Headers)
	r.Headers = append(headers, Header{Key: key, Val: val})
	return r
}

// WithOption returns a copy of the request with the option appended.
func (r Request) WithOption(key, val string) Request {
	options := make([]Option, len(r.Options), len(r.Options)+1)
	copy(options, r.Options)
	r.Options = append(options, Option{Key: key, Val: val})
	return r
}

// Option returns the value of the last option with the given key.
func (r Request) Option(key string) (string, bool) {
	for i := len(r.Options) - 1; i >= 0; i-- {
		if r.Options[i].Key == key {
			return r.Options[i].Val, true
		}
	}
	return "", false
}

// ParsedItem is the output of parsing one response: follow-up requests and
// extracted records, both possibly empty.
type ParsedItem struct {
	Requests []Request `json:"requests"`
	Items    []Map     `json:"items"`
}

// Response holds the result of a fetch. Body is the raw payload; spiders
// usually go through Document for charset-aware HTML access.
type Response struct {
	Url         string              `json:"url"`
	StatusCode  int                 `json:"status_code"`
	Status      string              `json:"status"`
	ContentType string              `json:"content_type"`
	Headers     map[string][]string `json:"headers"`
	Body        []byte              `json:"-"`
	FetchedAt   time.Time           `json:"fetched_at"`
}
