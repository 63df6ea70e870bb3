package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
)

// Catalog lists the WMS services the gateway renders from and the local
// layers it answers feature info requests for.
type Catalog struct {
	Services []ServiceEntry `koanf:"services"`
	Layers   []LayerEntry   `koanf:"layers"`
	Render   RenderDefaults `koanf:"render"`
}

type ServiceEntry struct {
	Name     string `koanf:"name"`
	URL      string `koanf:"url"`
	Version  string `koanf:"version"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// ForceURL replaces the advertised GetMap endpoint.
	ForceURL string `koanf:"force_url"`
	// Capabilities, when present, is used instead of fetching the document.
	Capabilities *capabilities.Document `koanf:"capabilities"`
}

type LayerEntry struct {
	Name       string `koanf:"name"`
	Source     string `koanf:"source"`
	Resolution int    `koanf:"resolution"`
	Enabled    *bool  `koanf:"enabled"`
	Queryable  *bool  `koanf:"queryable"`
	TargetSRID int    `koanf:"target_srid"`
	// Reproject is "", "wgs84-to-webmercator" or "webmercator-to-wgs84".
	Reproject string `koanf:"reproject"`
}

func (l LayerEntry) IsEnabled() bool   { return l.Enabled == nil || *l.Enabled }
func (l LayerEntry) IsQueryable() bool { return l.Queryable == nil || *l.Queryable }

type RenderDefaults struct {
	SRID            int    `koanf:"srid"`
	Parallelism     int    `koanf:"parallelism"`
	Background      string `koanf:"background"`
	Transparent     bool   `koanf:"transparent"`
	ContinueOnError bool   `koanf:"continue_on_error"`
	Fit             bool   `koanf:"fit"`
}

const (
	ReprojectNone      = ""
	ReprojectToMerc    = "wgs84-to-webmercator"
	ReprojectToWGS84   = "webmercator-to-wgs84"
	defaultResolution  = 5
	defaultParallelism = 8
)

var ErrInvalidCatalog = errors.New("invalid catalog")

func catalogDefaults() map[string]any {
	return map[string]any{
		"render.srid":              4326,
		"render.parallelism":       defaultParallelism,
		"render.background":        "#FFFFFF",
		"render.transparent":       true,
		"render.continue_on_error": true,
	}
}

// LoadCatalog reads a YAML catalog over the built-in defaults.
func LoadCatalog(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(catalogDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading catalog defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", path, err)
		}
	}

	var c Catalog
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("unmarshaling catalog: %w", err)
	}
	for i := range c.Layers {
		if c.Layers[i].Resolution == 0 {
			c.Layers[i].Resolution = defaultResolution
		}
		if c.Layers[i].TargetSRID == 0 {
			c.Layers[i].TargetSRID = 4326
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	seen := map[string]struct{}{}
	for i, s := range c.Services {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("%w: service %d needs a name and url", ErrInvalidCatalog, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate service %q", ErrInvalidCatalog, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	clear(seen)
	for i, l := range c.Layers {
		if l.Name == "" || l.Source == "" {
			return fmt.Errorf("%w: layer %d needs a name and source", ErrInvalidCatalog, i)
		}
		if _, dup := seen[strings.ToLower(l.Name)]; dup {
			return fmt.Errorf("%w: duplicate layer %q", ErrInvalidCatalog, l.Name)
		}
		seen[strings.ToLower(l.Name)] = struct{}{}
		if l.Resolution < 0 || l.Resolution > 15 {
			return fmt.Errorf("%w: layer %q resolution %d", ErrInvalidCatalog, l.Name, l.Resolution)
		}
		switch l.Reproject {
		case ReprojectNone, ReprojectToMerc, ReprojectToWGS84:
		default:
			return fmt.Errorf("%w: layer %q reproject %q", ErrInvalidCatalog, l.Name, l.Reproject)
		}
	}
	if _, err := ParseColor(c.Render.Background); err != nil {
		return fmt.Errorf("%w: render background: %w", ErrInvalidCatalog, err)
	}
	return nil
}

func (c *Catalog) Service(name string) (ServiceEntry, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceEntry{}, false
}

// StaticCapabilities builds the documents declared inline, keyed by URL.
func (c *Catalog) StaticCapabilities() (capabilities.StaticLoader, error) {
	out := capabilities.StaticLoader{}
	for _, s := range c.Services {
		if s.Capabilities == nil {
			continue
		}
		svc, err := s.Capabilities.Service(s.URL)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", s.Name, err)
		}
		out[s.URL] = svc
	}
	return out, nil
}

// ParseColor reads #RRGGBB, #RRGGBBAA or 0xRRGGBB.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(h, "#"):
		h = h[1:]
	case strings.HasPrefix(h, "0x"), strings.HasPrefix(h, "0X"):
		h = h[2:]
	}
	if len(h) == 6 {
		h += "FF"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
