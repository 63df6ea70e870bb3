package capabilities

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

var ErrNoLayers = errors.New("capabilities document has no layers")

type xmlOnline struct {
	Href string `xml:"href,attr"`
}

type xmlDCP struct {
	HTTP struct {
		Get []struct {
			OnlineResource xmlOnline `xml:"OnlineResource"`
		} `xml:"Get"`
		Post []struct {
			OnlineResource xmlOnline `xml:"OnlineResource"`
		} `xml:"Post"`
	} `xml:"HTTP"`
}

type xmlOperation struct {
	Format  []string `xml:"Format"`
	DCPType []xmlDCP `xml:"DCPType"`
}

type xmlBox struct {
	SRS  string  `xml:"SRS,attr"`
	CRS  string  `xml:"CRS,attr"`
	MinX float64 `xml:"minx,attr"`
	MinY float64 `xml:"miny,attr"`
	MaxX float64 `xml:"maxx,attr"`
	MaxY float64 `xml:"maxy,attr"`
}

type xmlGeoBox struct {
	West  float64 `xml:"westBoundLongitude"`
	East  float64 `xml:"eastBoundLongitude"`
	South float64 `xml:"southBoundLatitude"`
	North float64 `xml:"northBoundLatitude"`
}

type xmlLayer struct {
	Queryable string `xml:"queryable,attr"`
	Name      string `xml:"Name"`
	Title     string `xml:"Title"`
	Style     []struct {
		Name string `xml:"Name"`
	} `xml:"Style"`
	BoundingBox       []xmlBox   `xml:"BoundingBox"`
	LatLonBoundingBox *xmlBox    `xml:"LatLonBoundingBox"`
	GeographicBox     *xmlGeoBox `xml:"EX_GeographicBoundingBox"`
	Layer             []xmlLayer `xml:"Layer"`
}

type xmlCapabilities struct {
	Version string `xml:"version,attr"`
	Service struct {
		Title string `xml:"Title"`
	} `xml:"Service"`
	Capability struct {
		Request struct {
			GetMap         xmlOperation `xml:"GetMap"`
			GetFeatureInfo xmlOperation `xml:"GetFeatureInfo"`
		} `xml:"Request"`
		Layer []xmlLayer `xml:"Layer"`
	} `xml:"Capability"`
}

// Decode reads the subset of a WMS capabilities XML document that the
// exchange engine models: layer tree, styles, boxes, formats and methods.
func Decode(r io.Reader, serviceURL string) (*Service, error) {
	var doc xmlCapabilities
	dec := xml.NewDecoder(r)
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode capabilities xml: %w", err)
	}
	if len(doc.Capability.Layer) == 0 {
		return nil, ErrNoLayers
	}

	svc := &Service{
		URL:            serviceURL,
		Title:          strings.TrimSpace(doc.Service.Title),
		Version:        strings.TrimSpace(doc.Version),
		GetMap:         toOperation(doc.Capability.Request.GetMap),
		GetFeatureInfo: toOperation(doc.Capability.Request.GetFeatureInfo),
	}

	b := NewBuilder()
	top := doc.Capability.Layer
	parent := -1
	if len(top) > 1 {
		parent = b.Root(Layer{Title: svc.Title})
	}

	type item struct {
		parent int
		layer  *xmlLayer
	}
	stack := make([]item, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, item{parent: parent, layer: &top[i]})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		l := it.layer.toLayer(svc.Version)
		var idx int
		if it.parent < 0 {
			idx = b.Root(l)
		} else {
			idx = b.Add(it.parent, l)
		}
		for i := len(it.layer.Layer) - 1; i >= 0; i-- {
			stack = append(stack, item{parent: idx, layer: &it.layer.Layer[i]})
		}
	}
	svc.Layers = b.Build()
	return svc, nil
}

func toOperation(op xmlOperation) Operation {
	out := Operation{}
	for _, f := range op.Format {
		if f = strings.TrimSpace(f); f != "" {
			out.Formats = append(out.Formats, f)
		}
	}
	for _, d := range op.DCPType {
		for _, g := range d.HTTP.Get {
			out.Methods = append(out.Methods, TransportMethod{Kind: MethodGet, Endpoint: g.OnlineResource.Href})
		}
		for _, p := range d.HTTP.Post {
			out.Methods = append(out.Methods, TransportMethod{Kind: MethodPost, Endpoint: p.OnlineResource.Href})
		}
	}
	return out
}

func (x *xmlLayer) toLayer(version string) Layer {
	l := Layer{
		Name:      strings.TrimSpace(x.Name),
		Title:     strings.TrimSpace(x.Title),
		Queryable: x.Queryable == "1" || strings.EqualFold(x.Queryable, "true"),
	}
	for _, s := range x.Style {
		if n := strings.TrimSpace(s.Name); n != "" {
			l.Styles = append(l.Styles, n)
		}
	}
	for _, bb := range x.BoundingBox {
		code := bb.CRS
		if code == "" {
			code = bb.SRS
		}
		srid, err := crs.Parse(code)
		if err != nil {
			continue
		}
		box := model.BBox{X1: bb.MinX, Y1: bb.MinY, X2: bb.MaxX, Y2: bb.MaxY, SRID: srid}
		if crs.NeedsFlip(srid, version) {
			box = model.BBox{X1: bb.MinY, Y1: bb.MinX, X2: bb.MaxY, Y2: bb.MaxX, SRID: srid}
		}
		l.BoundingBoxes = append(l.BoundingBoxes, SRSBox{SRID: srid, Box: box})
	}
	switch {
	case x.LatLonBoundingBox != nil:
		ll := x.LatLonBoundingBox
		l.LatLonBox = &model.BBox{X1: ll.MinX, Y1: ll.MinY, X2: ll.MaxX, Y2: ll.MaxY, SRID: crs.WGS84}
	case x.GeographicBox != nil:
		g := x.GeographicBox
		l.LatLonBox = &model.BBox{X1: g.West, Y1: g.South, X2: g.East, Y2: g.North, SRID: crs.WGS84}
	}
	return l
}

// Document is the structured (JSON/YAML) form of a capabilities model, used
// by the catalog to describe services without a network round trip.
type Document struct {
	Version        string       `json:"version" koanf:"version"`
	Title          string       `json:"title,omitempty" koanf:"title"`
	GetMap         OperationDoc `json:"getmap" koanf:"getmap"`
	GetFeatureInfo OperationDoc `json:"getfeatureinfo,omitempty" koanf:"getfeatureinfo"`
	Layer          LayerDoc     `json:"layer" koanf:"layer"`
}

type OperationDoc struct {
	Formats []string    `json:"formats" koanf:"formats"`
	Methods []MethodDoc `json:"methods" koanf:"methods"`
}

type MethodDoc struct {
	Kind     string `json:"kind" koanf:"kind"`
	Endpoint string `json:"endpoint" koanf:"endpoint"`
}

type BoxDoc struct {
	SRS  string  `json:"srs" koanf:"srs"`
	MinX float64 `json:"minx" koanf:"minx"`
	MinY float64 `json:"miny" koanf:"miny"`
	MaxX float64 `json:"maxx" koanf:"maxx"`
	MaxY float64 `json:"maxy" koanf:"maxy"`
}

type LayerDoc struct {
	Name          string     `json:"name,omitempty" koanf:"name"`
	Title         string     `json:"title,omitempty" koanf:"title"`
	Queryable     bool       `json:"queryable,omitempty" koanf:"queryable"`
	Styles        []string   `json:"styles,omitempty" koanf:"styles"`
	BoundingBoxes []BoxDoc   `json:"boundingboxes,omitempty" koanf:"boundingboxes"`
	LatLonBox     *BoxDoc    `json:"latlonbox,omitempty" koanf:"latlonbox"`
	Layers        []LayerDoc `json:"layers,omitempty" koanf:"layers"`
}

func DecodeJSON(r io.Reader, serviceURL string) (*Service, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode capabilities json: %w", err)
	}
	return doc.Service(serviceURL)
}

// Service converts the document into the immutable runtime form.
func (d Document) Service(serviceURL string) (*Service, error) {
	if d.Layer.Name == "" && len(d.Layer.Layers) == 0 {
		return nil, ErrNoLayers
	}
	svc := &Service{
		URL:            serviceURL,
		Title:          d.Title,
		Version:        d.Version,
		GetMap:         d.GetMap.operation(),
		GetFeatureInfo: d.GetFeatureInfo.operation(),
	}

	b := NewBuilder()
	type item struct {
		parent int
		doc    *LayerDoc
	}
	stack := []item{{parent: -1, doc: &d.Layer}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		l := it.doc.layer()
		var idx int
		if it.parent < 0 {
			idx = b.Root(l)
		} else {
			idx = b.Add(it.parent, l)
		}
		for i := len(it.doc.Layers) - 1; i >= 0; i-- {
			stack = append(stack, item{parent: idx, doc: &it.doc.Layers[i]})
		}
	}
	svc.Layers = b.Build()
	return svc, nil
}

func (o OperationDoc) operation() Operation {
	out := Operation{Formats: append([]string(nil), o.Formats...)}
	for _, m := range o.Methods {
		out.Methods = append(out.Methods, TransportMethod{
			Kind:     MethodKind(strings.ToUpper(strings.TrimSpace(m.Kind))),
			Endpoint: m.Endpoint,
		})
	}
	return out
}

func (d *LayerDoc) layer() Layer {
	l := Layer{
		Name:      d.Name,
		Title:     d.Title,
		Queryable: d.Queryable,
		Styles:    append([]string(nil), d.Styles...),
	}
	for _, bb := range d.BoundingBoxes {
		srid, err := crs.Parse(bb.SRS)
		if err != nil {
			continue
		}
		l.BoundingBoxes = append(l.BoundingBoxes, SRSBox{
			SRID: srid,
			Box:  model.BBox{X1: bb.MinX, Y1: bb.MinY, X2: bb.MaxX, Y2: bb.MaxY, SRID: srid},
		})
	}
	if d.LatLonBox != nil {
		ll := d.LatLonBox
		l.LatLonBox = &model.BBox{X1: ll.MinX, Y1: ll.MinY, X2: ll.MaxX, Y2: ll.MaxY, SRID: crs.WGS84}
	}
	return l
}
