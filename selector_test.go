package spindle

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const listPage = `<html><body>
<h1 class="site-title">Example Books</h1>
<article class="product_pod"><h3><a href="/books/1">One</a></h3></article>
<article class="product_pod"><h3><a href="http://other.example/2">Two</a></h3></article>
<article class="product_pod"><h3><a>no href</a></h3></article>
</body></html>`

func listResponse() *Response {
	return &Response{
		Url:         "http://example.com/list",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(listPage),
	}
}

func TestLinkSelectorParseItem(t *testing.T) {
	spider := LinkSelector{
		SpiderName:   "catalog",
		Selector:     "article.product_pod",
		FindSelector: "h3 a",
		Attr:         "href",
		Fields: map[string]string{
			"site": "h1.site-title",
		},
	}

	parsed, err := spider.ParseItem(listResponse())
	if err != nil {
		t.Fatalf("ParseItem = %v", err)
	}

	wantUrls := []string{"http://example.com/books/1", "http://other.example/2"}
	if len(parsed.Requests) != len(wantUrls) {
		t.Fatalf("got %d requests, want %d", len(parsed.Requests), len(wantUrls))
	}
	for i, want := range wantUrls {
		if parsed.Requests[i].Url != want {
			t.Errorf("request %d url = %q, want %q", i, parsed.Requests[i].Url, want)
		}
	}

	if len(parsed.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(parsed.Items))
	}
	item := parsed.Items[0]
	if item["site"] != "Example Books" {
		t.Errorf(`item["site"] = %v, want "Example Books"`, item["site"])
	}
	if item["url"] != "http://example.com/list" {
		t.Errorf(`item["url"] = %v, want the page url`, item["url"])
	}
}

func TestLinkSelectorHandlerVeto(t *testing.T) {
	spider := LinkSelector{
		SpiderName:   "catalog",
		Selector:     "article.product_pod",
		FindSelector: "h3 a",
		Attr:         "href",
		Handler: func(res *Response, fullUrl string, sel *goquery.Selection) string {
			if fullUrl == "http://other.example/2" {
				return "" // skip off-site links
			}
			return fullUrl
		},
	}

	parsed, err := spider.ParseItem(listResponse())
	if err != nil {
		t.Fatalf("ParseItem = %v", err)
	}
	if len(parsed.Requests) != 1 || parsed.Requests[0].Url != "http://example.com/books/1" {
		t.Errorf("requests = %+v, want only the on-site link", parsed.Requests)
	}
}

func TestLinkSelectorSingleResult(t *testing.T) {
	spider := LinkSelector{
		SpiderName:   "catalog",
		Selector:     "article.product_pod",
		FindSelector: "h3 a",
		Attr:         "href",
		SingleResult: true,
	}

	parsed, err := spider.ParseItem(listResponse())
	if err != nil {
		t.Fatalf("ParseItem = %v", err)
	}
	if len(parsed.Requests) != 1 {
		t.Errorf("got %d requests, want 1 with SingleResult", len(parsed.Requests))
	}
}
