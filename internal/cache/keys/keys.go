// Package keys derives Redis keys for cached map images.
package keys

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const imagePrefix = "wms:img:"

// ServicePrefix is shared by every image key of one service, so a whole
// service can be evicted with a prefix scan.
func ServicePrefix(serviceURL string) string {
	return fmt.Sprintf("%s%016x:", imagePrefix, xxhash.Sum64String(NormalizeURL(serviceURL)))
}

// Image keys one rendered map. Two requests that differ only in query
// parameter order or key case share a key.
func Image(serviceURL, requestURL string) string {
	return fmt.Sprintf("%s%016x", ServicePrefix(serviceURL), xxhash.Sum64String(NormalizeURL(requestURL)))
}

// NormalizeURL lower-cases scheme, host and parameter names and sorts the
// query. Values keep their case; WMS layer names are case sensitive.
// Unparsable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	pairs := strings.Split(u.RawQuery, "&")
	kept := pairs[:0]
	for _, p := range pairs {
		if p == "" {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		kept = append(kept, strings.ToUpper(k)+"="+v)
	}
	sort.Strings(kept)
	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
	return u.String()
}
