package kafka

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event announces that the capabilities of a WMS service changed. Version
// grows monotonically per service; older or repeated versions are ignored.
type Event struct {
	ServiceURL string    `json:"service_url"`
	Version    uint64    `json:"version"`
	TS         time.Time `json:"ts"`
	Op         string    `json:"op,omitempty"`
}

func (e Event) Validate() error {
	u, err := url.Parse(strings.TrimSpace(e.ServiceURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("service_url must be an absolute url")
	}
	if e.Version == 0 {
		return errors.New("version is required")
	}
	switch e.Op {
	case "", OpUpdate, OpDelete:
	default:
		return errors.New("op must be update|delete")
	}
	return nil
}
