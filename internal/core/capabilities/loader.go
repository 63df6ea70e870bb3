package capabilities

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
)

// Loader produces the capabilities of the service at serviceURL.
type Loader interface {
	Load(ctx context.Context, serviceURL string) (*Service, error)
}

type LoaderFunc func(ctx context.Context, serviceURL string) (*Service, error)

func (f LoaderFunc) Load(ctx context.Context, serviceURL string) (*Service, error) {
	return f(ctx, serviceURL)
}

// HTTPLoader requests GetCapabilities from the service and decodes the XML.
type HTTPLoader struct {
	Client    *http.Client
	Version   string
	UserAgent string
}

const maxCapabilitiesBytes = 16 << 20

func (l HTTPLoader) Load(ctx context.Context, serviceURL string) (*Service, error) {
	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetCapabilities")
	if l.Version != "" {
		q.Set("VERSION", l.Version)
	}
	u := model.JoinQuery(serviceURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build capabilities request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.ogc.wms_xml, text/xml, application/xml")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get capabilities: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("capabilities", time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("capabilities status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body := io.LimitReader(resp.Body, maxCapabilitiesBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return DecodeJSON(body, serviceURL)
	}
	return Decode(body, serviceURL)
}

// StaticLoader serves documents known up front, keyed by service URL.
type StaticLoader map[string]*Service

func (s StaticLoader) Load(_ context.Context, serviceURL string) (*Service, error) {
	if svc, ok := s[serviceURL]; ok {
		return svc, nil
	}
	return nil, fmt.Errorf("no static capabilities for %q", serviceURL)
}

// Chain tries each loader in order and returns the first success.
type Chain []Loader

func (c Chain) Load(ctx context.Context, serviceURL string) (*Service, error) {
	var last error
	for _, l := range c {
		svc, err := l.Load(ctx, serviceURL)
		if err == nil {
			return svc, nil
		}
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no loader for %q", serviceURL)
	}
	return nil, last
}
