package ogc

import (
	"net/url"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

type Param struct {
	Key   string
	Value string
}

// Request is a fully built WMS request. Params keep insertion order so the
// same inputs always encode to the same bytes.
type Request struct {
	Method   capabilities.MethodKind
	Endpoint string
	Params   []Param
	// Service is the capabilities URL the request was derived from. It
	// scopes cached responses and is never sent.
	Service string
}

// kept literal in BBOX, CRS and LAYERS
var keepLiteral = strings.NewReplacer("%2C", ",", "%3A", ":", "%2F", "/")

func escape(s string) string {
	return keepLiteral.Replace(url.QueryEscape(s))
}

func (r Request) Query() string {
	var b strings.Builder
	for i, p := range r.Params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.Key))
		b.WriteByte('=')
		b.WriteString(escape(p.Value))
	}
	return b.String()
}

// URL is the endpoint with the query appended. For POST requests the
// parameters travel in the body and URL returns the bare endpoint.
func (r Request) URL() string {
	if r.Method == capabilities.MethodPost {
		return r.Endpoint
	}
	return model.JoinQuery(r.Endpoint, r.Query())
}

// form payload for POST, empty for GET
func (r Request) Body() string {
	if r.Method == capabilities.MethodPost {
		return r.Query()
	}
	return ""
}

func (r Request) Get(key string) (string, bool) {
	for _, p := range r.Params {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

func (r *Request) add(key, value string) {
	r.Params = append(r.Params, Param{Key: key, Value: value})
}
