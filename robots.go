package spindle

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsGate checks robots.txt before static fetches. Groups are cached per
// host; an unfetchable or unparsable robots.txt defaults to allow.
type robotsGate struct {
	userAgent string
	client    *http.Client

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsGate(userAgent string, timeout time.Duration) *robotsGate {
	return &robotsGate{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		groups:    make(map[string]*robotstxt.Group),
	}
}

func (g *robotsGate) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	group := g.group(u.Scheme + "://" + u.Host)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (g *robotsGate) group(base string) *robotstxt.Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	if group, ok := g.groups[base]; ok {
		return group
	}
	group := g.fetchGroup(base)
	g.groups[base] = group
	return group
}

func (g *robotsGate) fetchGroup(base string) *robotstxt.Group {
	req, err := http.NewRequest(http.MethodGet, base+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)
	res, err := g.client.Do(req)
	if err != nil || res.StatusCode != http.StatusOK {
		if res != nil {
			res.Body.Close()
		}
		return nil
	}
	defer res.Body.Close()
	data, err := robotstxt.FromResponse(res)
	if err != nil {
		return nil
	}
	return data.FindGroup(g.userAgent)
}
