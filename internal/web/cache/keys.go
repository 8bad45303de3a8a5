package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// RequestKey builds the cache key for a request from its method, path and
// query parameters in sorted order
func RequestKey(r *http.Request) string {
	var b strings.Builder
	b.WriteString("response:")
	b.WriteString(r.Method)
	b.WriteByte(':')
	b.WriteString(r.URL.Path)

	if q := canonicalQuery(r.URL.Query()); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
