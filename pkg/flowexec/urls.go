package flowexec

import (
	"fmt"
	"net/url"
	"strings"
)

// QSKeyToken is the reserved query-string key carrying a flow token key
// on resumption URLs. Its presence on a GET marks a returning user.
const QSKeyToken = "flow_token"

// URLBuilder constructs absolute resumption URLs for flows
type URLBuilder struct {
	baseURL string
}

// NewURLBuilder creates a URL builder rooted at baseURL
// (e.g. "https://auth.example.com").
func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// FlowURL returns the absolute URL for a flow, with query parameters
func (b *URLBuilder) FlowURL(flowSlug string, query url.Values) string {
	flowURL := fmt.Sprintf("%s/flows/%s", b.baseURL, url.PathEscape(flowSlug))
	if len(query) > 0 {
		flowURL += "?" + query.Encode()
	}
	return flowURL
}
