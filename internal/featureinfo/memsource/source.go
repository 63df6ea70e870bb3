// Package memsource is an in-memory feature source for lon/lat data. Features
// are bucketed by the H3 cells covering their extent; queries gather the
// candidate buckets and then test extents exactly.
package memsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	h3 "github.com/uber/h3-go/v4"
)

const (
	DefaultResolution = 5
	// maxSamples bounds the lattice of one extent; larger extents skip the
	// cell index.
	maxSamples  = 4096
	res0EdgeKm  = 1281.256
	kmPerDegree = 111.32
)

var ErrInvalidResolution = errors.New("h3 resolution must be within 0 and 15")

type Source struct {
	res int

	mu       sync.RWMutex
	features []*geojson.Feature
	cells    map[h3.Cell][]int
	// wide holds features that are too large or malformed for the index.
	wide []int
}

func New(res int) (*Source, error) {
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResolution, res)
	}
	return &Source{res: res, cells: make(map[h3.Cell][]int)}, nil
}

// Load decodes a GeoJSON FeatureCollection into a new source.
func Load(r io.Reader, res int) (*Source, error) {
	s, err := New(res)
	if err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	s.Add(fc.Features...)
	return s, nil
}

func LoadFile(path string, res int) (*Source, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, res)
}

func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Add indexes features. Features without geometry are ignored.
func (s *Source) Add(fs ...*geojson.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fs {
		if f == nil || f.Geometry == nil {
			continue
		}
		idx := len(s.features)
		s.features = append(s.features, f)

		cells, ok := s.cover(f.Geometry.Bound())
		if !ok {
			s.wide = append(s.wide, idx)
			continue
		}
		for _, c := range cells {
			s.cells[c] = append(s.cells[c], idx)
		}
	}
}

// Query returns features whose extent intersects box, in insertion order.
func (s *Source) Query(ctx context.Context, box orb.Bound) ([]*geojson.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []int
	if cells, ok := s.cover(box); ok {
		seen := make(map[int]struct{})
		for _, c := range cells {
			for _, i := range s.cells[c] {
				if _, dup := seen[i]; !dup {
					seen[i] = struct{}{}
					candidates = append(candidates, i)
				}
			}
		}
		for _, i := range s.wide {
			if _, dup := seen[i]; !dup {
				candidates = append(candidates, i)
			}
		}
		slices.Sort(candidates)
	} else {
		candidates = make([]int, len(s.features))
		for i := range candidates {
			candidates[i] = i
		}
	}

	var out []*geojson.Feature
	for _, i := range candidates {
		f := s.features[i]
		if f.Geometry.Bound().Intersects(box) {
			out = append(out, f)
		}
	}
	return out, nil
}

// cover lists the cells touching b, padded by one ring. b is sampled on a
// lattice spaced at a third of a cell edge, so every point of b lies in or
// next to a sampled cell. It reports false when b should bypass the index.
func (s *Source) cover(b orb.Bound) ([]h3.Cell, bool) {
	if !valid(b) {
		return nil, false
	}
	step := s.step()
	nx := int(math.Ceil((b.Max[0]-b.Min[0])/step)) + 1
	ny := int(math.Ceil((b.Max[1]-b.Min[1])/step)) + 1
	if nx*ny > maxSamples {
		return nil, false
	}

	seed := make(map[h3.Cell]struct{})
	for i := 0; i < nx; i++ {
		lng := math.Min(b.Min[0]+float64(i)*step, b.Max[0])
		for j := 0; j < ny; j++ {
			lat := math.Min(b.Min[1]+float64(j)*step, b.Max[1])
			c, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), s.res)
			if err != nil {
				return nil, false
			}
			seed[c] = struct{}{}
		}
	}

	out := make(map[h3.Cell]struct{}, len(seed)*7)
	for c := range seed {
		ring, err := c.GridDisk(1)
		if err != nil {
			return nil, false
		}
		for _, n := range ring {
			out[n] = struct{}{}
		}
	}
	cells := make([]h3.Cell, 0, len(out))
	for c := range out {
		cells = append(cells, c)
	}
	return cells, true
}

// step is a third of the average cell edge at the source resolution, in
// degrees of latitude. A degree of longitude is never longer, so the step
// holds on both axes.
func (s *Source) step() float64 {
	edgeKm := res0EdgeKm / math.Pow(math.Sqrt(7), float64(s.res))
	return edgeKm / kmPerDegree / 3
}

func valid(b orb.Bound) bool {
	return b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90 &&
		b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1]
}
