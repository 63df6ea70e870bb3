// Package capabilities holds the immutable layer tree and service metadata
// derived from a WMS capabilities document, plus a registry that shares one
// parsed document per service URL.
package capabilities

import (
	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

// SRSBox is a bounding box advertised for one spatial reference.
type SRSBox struct {
	SRID int
	Box  model.BBox
}

type Layer struct {
	Name          string
	Title         string
	Queryable     bool
	Styles        []string
	BoundingBoxes []SRSBox
	LatLonBox     *model.BBox
}

type node struct {
	layer    Layer
	children []int
}

// Model is a layer tree stored as an arena of nodes addressed by index.
// Node 0 is the root. A Model is never mutated after Build.
type Model struct {
	nodes []node
}

// Len returns the number of layers in the tree.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.nodes)
}

// Root returns the top level layer.
func (m *Model) Root() (Layer, bool) {
	if m.Len() == 0 {
		return Layer{}, false
	}
	return m.nodes[0].layer, true
}

// walk visits nodes depth first in pre-order starting at start. fn returns
// false to stop the traversal.
func (m *Model) walk(start int, fn func(idx int) bool) {
	if start < 0 || start >= m.Len() {
		return
	}
	stack := []int{start}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(idx) {
			return
		}
		kids := m.nodes[idx].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Walk visits every layer in pre-order with its depth below the root. fn
// returns false to stop.
func (m *Model) Walk(fn func(l Layer, depth int) bool) {
	if m.Len() == 0 {
		return
	}
	type item struct{ idx, depth int }
	stack := []item{{0, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(m.nodes[it.idx].layer, it.depth) {
			return
		}
		kids := m.nodes[it.idx].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{kids[i], it.depth + 1})
		}
	}
}

func (m *Model) find(name string) int {
	found := -1
	m.walk(0, func(idx int) bool {
		if m.nodes[idx].layer.Name == name {
			found = idx
			return false
		}
		return true
	})
	return found
}

// FindLayer returns the first layer named name in pre-order.
func (m *Model) FindLayer(name string) (Layer, bool) {
	idx := m.find(name)
	if idx < 0 {
		return Layer{}, false
	}
	return m.nodes[idx].layer, true
}

// FindStyle reports whether any layer in the tree offers the style.
func (m *Model) FindStyle(name string) bool {
	found := false
	m.walk(0, func(idx int) bool {
		for _, s := range m.nodes[idx].layer.Styles {
			if s == name {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// AllBoundingBoxes gathers every advertised box, parents before children.
func (m *Model) AllBoundingBoxes() []SRSBox {
	var out []SRSBox
	m.walk(0, func(idx int) bool {
		out = append(out, m.nodes[idx].layer.BoundingBoxes...)
		return true
	})
	return out
}

// Subtree returns the named layer followed by all of its descendants in
// pre-order. It returns nil when the layer does not exist.
func (m *Model) Subtree(name string) []Layer {
	idx := m.find(name)
	if idx < 0 {
		return nil
	}
	var out []Layer
	m.walk(idx, func(i int) bool {
		out = append(out, m.nodes[i].layer)
		return true
	})
	return out
}

// Children returns the direct children of the named layer.
func (m *Model) Children(name string) []Layer {
	idx := m.find(name)
	if idx < 0 {
		return nil
	}
	kids := m.nodes[idx].children
	out := make([]Layer, 0, len(kids))
	for _, k := range kids {
		out = append(out, m.nodes[k].layer)
	}
	return out
}

// Envelope resolves the extent of the whole tree in srid: the union of all
// boxes advertised for srid, or the root lat/lon box when srid is WGS84 and
// no explicit box exists.
func (m *Model) Envelope(srid int) (model.BBox, bool) {
	var (
		out model.BBox
		hit bool
	)
	for _, b := range m.AllBoundingBoxes() {
		if b.SRID != srid {
			continue
		}
		if !hit {
			out = b.Box
			hit = true
			continue
		}
		out = out.Union(b.Box)
	}
	if hit {
		out.SRID = srid
		return out, true
	}
	if srid == crs.WGS84 {
		if root, ok := m.Root(); ok && root.LatLonBox != nil {
			bb := *root.LatLonBox
			bb.SRID = crs.WGS84
			return bb, true
		}
	}
	return model.BBox{}, false
}

// Builder assembles a Model. It is not safe for concurrent use.
type Builder struct {
	nodes []node
	built bool
}

func NewBuilder() *Builder { return &Builder{} }

// Root sets the root layer and returns its index. Calling Root twice
// replaces the root layer but keeps its children.
func (b *Builder) Root(l Layer) int {
	if len(b.nodes) == 0 {
		b.nodes = append(b.nodes, node{layer: l})
		return 0
	}
	b.nodes[0].layer = l
	return 0
}

// Add appends l as the last child of parent and returns its index.
func (b *Builder) Add(parent int, l Layer) int {
	if len(b.nodes) == 0 {
		b.Root(Layer{})
	}
	if parent < 0 || parent >= len(b.nodes) {
		parent = 0
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{layer: l})
	b.nodes[parent].children = append(b.nodes[parent].children, idx)
	return idx
}

// Build freezes the tree. A Builder can be built only once.
func (b *Builder) Build() *Model {
	if b.built {
		panic("capabilities: Builder reused after Build")
	}
	b.built = true
	nodes := b.nodes
	b.nodes = nil
	return &Model{nodes: nodes}
}
