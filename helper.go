package spindle

import (
	"fmt"
	"net/url"
	"strings"
)

// ensureScheme defaults bare proxy addresses to http://.
func ensureScheme(rawURL string) (string, error) {
	if strings.Contains(rawURL, "://") {
		return rawURL, nil
	}
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}
	return "http://" + rawURL, nil
}

// resolveUrl resolves href against the page it was found on. Unparsable
// input comes back unchanged.
func resolveUrl(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	hrefURL, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(hrefURL).String()
}
