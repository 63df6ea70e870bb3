// Package executor fetches rendered maps from WMS servers and assembles the
// streamed response under stall detection.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/httpclient"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultIdleInterval = 10 * time.Millisecond
	DefaultChunkSize    = 4 << 10
	DefaultUserAgent    = "wmsgate-WMSLayer"

	maxErrorBody = 64 << 10
)

// Credentials authenticate against the map server with HTTP basic auth.
// Without PreAuthenticate they are only sent after a 401 challenge.
type Credentials struct {
	Username        string
	Password        string
	PreAuthenticate bool
}

type Options struct {
	// Timeout bounds the time between two received chunks, and the wait
	// for response headers. It is not a limit on the whole transfer.
	Timeout            time.Duration
	IdleInterval       time.Duration
	ChunkSize          int
	Credentials        *Credentials
	Proxy              *url.URL
	UserAgent          string
	TolerateTruncation bool
	Accept             string
}

func DefaultOptions() Options {
	return Options{
		Timeout:            DefaultTimeout,
		IdleInterval:       DefaultIdleInterval,
		ChunkSize:          DefaultChunkSize,
		UserAgent:          DefaultUserAgent,
		TolerateTruncation: true,
	}
}

// withDefaults fills zero durations and sizes. TolerateTruncation is taken
// as given.
func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = DefaultIdleInterval
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Result is a fully assembled map response.
type Result struct {
	Body        []byte
	ContentType string
	State       State
	BytesRead   int64
	Declared    int64
	Cached      bool
}

// Cache stores complete map responses keyed by request.
type Cache interface {
	Lookup(ctx context.Context, req ogc.Request) (body []byte, contentType string, ok bool)
	Store(ctx context.Context, req ogc.Request, body []byte, contentType string)
}

type Option func(*Executor)

func WithCache(c Cache) Option {
	return func(e *Executor) { e.cache = c }
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	opts     Options
	cache    Cache
	startNow func() time.Time // for tests
}

// New returns an Executor. With a nil client one is built from opts with
// keep-alives off, since every fetch asks for Connection: close.
func New(logger *slog.Logger, client *http.Client, opts Options, extra ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	if client == nil {
		client = httpclient.NewOutbound(
			httpclient.WithProxy(opts.Proxy),
			httpclient.WithoutKeepAlives(),
			httpclient.WithTimeout(0),
		)
	}
	e := &Executor{
		logger:   logger,
		client:   client,
		opts:     opts,
		startNow: time.Now,
	}
	for _, o := range extra {
		o(e)
	}
	return e
}

func (e *Executor) Options() Options { return e.opts }

// FetchMap sends req and returns the image it produced. Every failure is a
// *FetchError.
func (e *Executor) FetchMap(ctx context.Context, req ogc.Request) (Result, error) {
	if e.cache != nil {
		if body, ct, ok := e.cache.Lookup(ctx, req); ok {
			return Result{
				Body:        body,
				ContentType: ct,
				State:       StateComplete,
				BytesRead:   int64(len(body)),
				Declared:    int64(len(body)),
				Cached:      true,
			}, nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := e.startNow()
	resp, err := e.send(ctx, req)
	if err != nil {
		e.record(req, StateTransportError, 0, start)
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.record(req, StateTransportError, len(b), start)
		return Result{}, &FetchError{
			Kind:   KindProtocol,
			Status: resp.StatusCode,
			Body:   b,
			Err:    fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}

	body, state, err := Assemble(resp.Body, resp.ContentLength, e.opts)
	if err != nil {
		e.record(req, state, 0, start)
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Status = resp.StatusCode
		}
		return Result{}, err
	}

	ct := resp.Header.Get("Content-Type")
	if !isImage(ct) {
		e.record(req, StateTransportError, len(body), start)
		return Result{}, &FetchError{
			Kind:   KindProtocol,
			Status: resp.StatusCode,
			Body:   body,
			Err:    fmt.Errorf("unexpected content type %q", ct),
		}
	}

	e.record(req, state, len(body), start)
	if state == StateTruncated {
		e.logger.Warn("wms response truncated, using partial image",
			"url", req.URL(), "bytes", len(body), "declared", resp.ContentLength)
	} else if e.cache != nil {
		e.cache.Store(ctx, req, body, ct)
	}
	return Result{
		Body:        body,
		ContentType: ct,
		State:       state,
		BytesRead:   int64(len(body)),
		Declared:    resp.ContentLength,
	}, nil
}

// send performs the exchange up to the response headers. Waiting for the
// headers is bounded by the stall timeout as well.
func (e *Executor) send(ctx context.Context, req ogc.Request) (*http.Response, error) {
	creds := e.opts.Credentials
	resp, err := e.roundTrip(ctx, req, creds != nil && creds.PreAuthenticate)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && creds != nil && !creds.PreAuthenticate {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return e.roundTrip(ctx, req, true)
	}
	return resp, nil
}

func (e *Executor) roundTrip(ctx context.Context, req ogc.Request, auth bool) (*http.Response, error) {
	httpReq, err := e.newRequest(ctx, req, auth)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Err: err}
	}

	reqCtx, cancel := context.WithCancel(ctx)
	httpReq = httpReq.WithContext(reqCtx)
	timer := time.AfterFunc(e.opts.Timeout, cancel)

	resp, err := e.client.Do(httpReq)
	if !timer.Stop() {
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, &FetchError{Kind: KindTimeout, Err: fmt.Errorf("no response within %s", e.opts.Timeout)}
	}
	if err != nil {
		cancel()
		return nil, &FetchError{Kind: KindTransport, Err: err}
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (e *Executor) newRequest(ctx context.Context, req ogc.Request, auth bool) (*http.Request, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if req.Method == capabilities.MethodPost {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, req.URL(), strings.NewReader(req.Body()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, req.URL(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	accept := e.opts.Accept
	if accept == "" {
		if f, ok := req.Get("FORMAT"); ok {
			accept = f
		}
	}
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}
	httpReq.Header.Set("User-Agent", e.opts.UserAgent)
	httpReq.Close = true
	if auth && e.opts.Credentials != nil {
		httpReq.SetBasicAuth(e.opts.Credentials.Username, e.opts.Credentials.Password)
	}
	return httpReq, nil
}

func (e *Executor) record(req ogc.Request, state State, n int, start time.Time) {
	dur := time.Since(start)
	observability.ObserveUpstreamLatency("wms", dur.Seconds())
	observability.ObserveFetch(state.String(), n)
	e.logger.Debug("wms fetch done",
		"endpoint", req.Endpoint,
		"state", state.String(),
		"bytes", n,
		"duration", dur.String())
}

func isImage(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.HasPrefix(mt, "image/")
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
