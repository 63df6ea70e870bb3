package featureinfo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// Reprojector transforms a geometry into the layer's target reference.
// Implementations must not modify g.
type Reprojector interface {
	Reproject(g orb.Geometry) orb.Geometry
}

// Projection adapts a point projection to a Reprojector.
type Projection orb.Projection

func (p Projection) Reproject(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), orb.Projection(p))
}

var (
	WebMercatorToWGS84 = Projection(project.Mercator.ToWGS84)
	WGS84ToWebMercator = Projection(project.WGS84.ToMercator)
)

// reprojectAll returns reprojected copies; the source features are shared
// with other requests and stay untouched.
func reprojectAll(fs []*geojson.Feature, r Reprojector) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(fs))
	for _, f := range fs {
		if f == nil {
			continue
		}
		cp := *f
		cp.Geometry = r.Reproject(f.Geometry)
		cp.BBox = nil
		out = append(out, &cp)
	}
	return out
}
