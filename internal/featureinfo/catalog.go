// Package featureinfo answers GetFeatureInfo style requests from locally
// hosted vector layers with a GeoJSON FeatureCollection.
package featureinfo

import (
	"context"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Queryer returns the features whose extent intersects box. Boxes are x/y in
// the layer's own coordinates.
type Queryer interface {
	Query(ctx context.Context, box orb.Bound) ([]*geojson.Feature, error)
}

type QueryFunc func(ctx context.Context, box orb.Bound) ([]*geojson.Feature, error)

func (f QueryFunc) Query(ctx context.Context, box orb.Bound) ([]*geojson.Feature, error) {
	return f(ctx, box)
}

// Layer is a server side layer. A nil Query marks it as not queryable and a
// nil Reproject leaves geometries as stored.
type Layer struct {
	Name         string
	Enabled      bool
	Query        Queryer
	QueryEnabled bool
	TargetSRID   int
	Reproject    Reprojector
}

func (l Layer) queryable() bool { return l.Query != nil && l.QueryEnabled }

// Catalog is the fixed, ordered list of layers a handler serves. It is never
// mutated after NewCatalog; requests toggle layers on a Snapshot.
type Catalog struct {
	layers []Layer
}

func NewCatalog(layers ...Layer) *Catalog {
	return &Catalog{layers: slices.Clone(layers)}
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.layers)
}

// Snapshot returns a private copy of the layers for one request.
func (c *Catalog) Snapshot() []Layer {
	if c == nil {
		return nil
	}
	return slices.Clone(c.layers)
}

// Names lists the layer names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, c.Len())
	for _, l := range c.Snapshot() {
		out = append(out, l.Name)
	}
	return out
}

// restrict disables layers not named in csv. it never enables a layer and an
// empty list leaves the set untouched.
func restrict(layers []Layer, csv string) {
	want := map[string]struct{}{}
	for n := range strings.SplitSeq(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			want[strings.ToLower(n)] = struct{}{}
		}
	}
	if len(want) == 0 {
		return
	}
	for i := range layers {
		if _, ok := want[strings.ToLower(layers[i].Name)]; !ok {
			layers[i].Enabled = false
		}
	}
}
