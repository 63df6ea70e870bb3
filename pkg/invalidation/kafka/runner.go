// Package kafka consumes capabilities change events and evicts the cached
// capabilities and map images of the affected service.
package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
)

// CapabilitiesCache drops the parsed capabilities of a service.
type CapabilitiesCache interface {
	Invalidate(serviceURL string) bool
}

// ImageCache drops every cached map image fetched from a service.
type ImageCache interface {
	DeleteService(ctx context.Context, serviceURL string) (int, error)
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	caps     CapabilitiesCache
	images   ImageCache
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
	// Images is optional; without it only capabilities are evicted.
	Images ImageCache
}

func New(cfg InvalidationConfig, caps CapabilitiesCache, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg,
		caps:   caps,
		images: opts.Images,
		ms:     newMetricSet(opts.Register),
		ver:    newVersionDedupe(8192),
		assign: map[int32]struct{}{},
	}
}

// saramaConfig holds the settings shared by the consumer and the publisher.
func (c InvalidationConfig) saramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "wmsgate"
	if c.SessionTimeout > 0 {
		cfg.Consumer.Group.Session.Timeout = c.SessionTimeout
	}
	if c.Heartbeat > 0 {
		cfg.Consumer.Group.Heartbeat.Interval = c.Heartbeat
	}
	if c.RebalanceTimeout > 0 {
		cfg.Consumer.Group.Rebalance.Timeout = c.RebalanceTimeout
	}
	if c.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true

	if c.TLS.Enable {
		tc, err := c.TLS.build()
		if err != nil {
			return nil, err
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tc
	}
	if c.SASL.Enable {
		mech := sarama.SASLMechanism(c.SASL.Mechanism)
		if mech == "" {
			mech = sarama.SASLTypePlaintext
		}
		if mech != sarama.SASLTypePlaintext {
			return nil, fmt.Errorf("sasl mechanism %q not supported", mech)
		}
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = mech
		cfg.Net.SASL.User = c.SASL.Username
		cfg.Net.SASL.Password = c.SASL.Password
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sarama config: %w", err)
	}
	return cfg, nil
}

func (c TLSConfig) build() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.SkipVerify}
	if c.CaFile != "" {
		pem, err := os.ReadFile(c.CaFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("ca file holds no certificates")
		}
		tc.RootCAs = pool
	}
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("invalidation runner disabled")
		return nil
	}
	if r.caps == nil {
		return errors.New("kafka runner: capabilities cache is required")
	}
	cfg, err := r.cfg.saramaConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				observability.IncInvalidationError("consume")
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			observability.IncInvalidationError("group")
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage applies one event. Malformed events are counted and skipped
// so that they do not block the partition; failed evictions are returned and
// the message is consumed again.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.reject("decode", msg, err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		r.reject("validate", msg, err)
		return nil
	}

	ts := ev.TS
	if ts.IsZero() {
		ts = msg.Timestamp
	}
	if !ts.IsZero() {
		observability.SetInvalidationLagSeconds(time.Since(ts).Seconds())
	}

	err := r.apply(ctx, ev)
	if err != nil {
		observability.IncInvalidationError("apply")
		r.ms.msgs.WithLabelValues("error").Inc()
	} else {
		r.ms.msgs.WithLabelValues("ok").Inc()
	}
	r.ms.proc.Observe(time.Since(start).Seconds())
	return err
}

func (r *Runner) reject(kind string, msg *sarama.ConsumerMessage, err error) {
	observability.IncInvalidationError(kind)
	r.ms.msgs.WithLabelValues("invalid").Inc()
	r.log.Warn("invalidation event skipped",
		"kind", kind, "partition", msg.Partition, "offset", msg.Offset, "err", err)
}

func (r *Runner) apply(ctx context.Context, ev Event) error {
	if !r.ver.newer(ev.ServiceURL, ev.Version) {
		r.ms.apply.WithLabelValues("skip_version").Inc()
		return nil
	}

	if r.caps.Invalidate(ev.ServiceURL) {
		r.ms.apply.WithLabelValues("capabilities").Inc()
	}
	if r.images != nil {
		n, err := r.images.DeleteService(ctx, ev.ServiceURL)
		if err != nil {
			return fmt.Errorf("delete images of %s: %w", ev.ServiceURL, err)
		}
		r.ms.apply.WithLabelValues("image").Add(float64(n))
	}
	r.ver.record(ev.ServiceURL, ev.Version)
	r.log.Info("service invalidated", "service", ev.ServiceURL, "version", ev.Version, "op", ev.Op)
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
