package spindle

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Spider converts one response into follow-up requests and extracted items.
// Implementations may fail arbitrarily; the worker contains the damage.
type Spider interface {
	Name() string
	ParseItem(res *Response) (*ParsedItem, error)
}

// SpiderFunc adapts a plain parse function into a Spider.
type SpiderFunc struct {
	SpiderName string
	Parse      func(res *Response) (*ParsedItem, error)
}

func (s SpiderFunc) Name() string {
	return s.SpiderName
}

func (s SpiderFunc) ParseItem(res *Response) (*ParsedItem, error) {
	return s.Parse(res)
}

// Document decodes the response body with the correct encoding and returns
// it as a goquery document.
func (res *Response) Document() (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(res.Body), res.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader with correct encoding: %w", err)
	}
	return goquery.NewDocumentFromReader(reader)
}
