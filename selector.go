package spindle

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkSelector is a declarative spider: it walks Selector matches, pulls the
// Attr of each FindSelector element into follow-up requests, and optionally
// extracts one item per page from Fields (field name to CSS selector).
type LinkSelector struct {
	SpiderName   string
	Selector     string
	FindSelector string
	Attr         string
	SingleResult bool
	Fields       map[string]string
	// Handler can veto or rewrite an extracted URL; return "" to skip it.
	Handler func(res *Response, fullUrl string, sel *goquery.Selection) string
}

func (s LinkSelector) Name() string {
	return s.SpiderName
}

func (s LinkSelector) ParseItem(res *Response) (*ParsedItem, error) {
	doc, err := res.Document()
	if err != nil {
		return nil, err
	}

	parsed := &ParsedItem{}
	selection := doc.Find(s.Selector)
	if s.SingleResult {
		selection = selection.First()
	}
	selection.Each(func(i int, container *goquery.Selection) {
		container.Find(s.FindSelector).Each(func(j int, link *goquery.Selection) {
			attr, ok := link.Attr(s.Attr)
			if !ok {
				return
			}
			fullUrl := resolveUrl(res.Url, attr)
			if s.Handler != nil {
				fullUrl = s.Handler(res, fullUrl, link)
			}
			if fullUrl != "" {
				parsed.Requests = append(parsed.Requests, NewRequest(fullUrl))
			}
		})
	})

	if len(s.Fields) > 0 {
		item := Map{}
		for field, query := range s.Fields {
			item[field] = strings.TrimSpace(doc.Find(query).First().Text())
		}
		item["url"] = res.Url
		parsed.Items = append(parsed.Items, item)
	}
	return parsed, nil
}
