package capabilities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

// root
// ├── A (styles: default)
// │   └── dup
// └── B (styles: outline)
//     ├── dup (second)
//     └── C
func sampleModel() *Model {
	b := NewBuilder()
	root := b.Root(Layer{
		Name:          "root",
		BoundingBoxes: []SRSBox{{SRID: 3857, Box: model.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}}},
		LatLonBox:     &model.BBox{X1: -1, Y1: -2, X2: 3, Y2: 4},
	})
	a := b.Add(root, Layer{
		Name:          "A",
		Styles:        []string{"default"},
		BoundingBoxes: []SRSBox{{SRID: 3857, Box: model.BBox{X1: -5, Y1: 2, X2: 4, Y2: 20}}},
	})
	b.Add(a, Layer{Name: "dup", Title: "first"})
	bb := b.Add(root, Layer{
		Name:          "B",
		Styles:        []string{"outline"},
		BoundingBoxes: []SRSBox{{SRID: 28992, Box: model.BBox{X1: 1, Y1: 1, X2: 2, Y2: 2}}},
	})
	b.Add(bb, Layer{Name: "dup", Title: "second"})
	b.Add(bb, Layer{Name: "C", Styles: []string{"deep"}})
	return b.Build()
}

func TestFindLayer_PreOrderFirstMatchWins(t *testing.T) {
	m := sampleModel()

	l, ok := m.FindLayer("dup")
	require.True(t, ok)
	require.Equal(t, "first", l.Title)

	_, ok = m.FindLayer("C")
	require.True(t, ok)

	_, ok = m.FindLayer("missing")
	require.False(t, ok)
}

func TestFindStyle(t *testing.T) {
	m := sampleModel()
	require.True(t, m.FindStyle("default"))
	require.True(t, m.FindStyle("deep"))
	require.False(t, m.FindStyle("nope"))
}

func TestAllBoundingBoxes_ParentsFirst(t *testing.T) {
	m := sampleModel()
	got := m.AllBoundingBoxes()
	require.Len(t, got, 3)
	require.Equal(t, []int{3857, 3857, 28992}, []int{got[0].SRID, got[1].SRID, got[2].SRID})
	require.Equal(t, 10.0, got[0].Box.X2)
}

func TestEnvelope(t *testing.T) {
	m := sampleModel()

	env, ok := m.Envelope(3857)
	require.True(t, ok)
	require.Equal(t, model.BBox{X1: -5, Y1: 0, X2: 10, Y2: 20, SRID: 3857}, env)

	env, ok = m.Envelope(4326)
	require.True(t, ok, "wgs84 falls back to the lat/lon box")
	require.Equal(t, model.BBox{X1: -1, Y1: -2, X2: 3, Y2: 4, SRID: 4326}, env)

	_, ok = m.Envelope(2154)
	require.False(t, ok)
}

func TestSubtree(t *testing.T) {
	m := sampleModel()
	var names []string
	for _, l := range m.Subtree("B") {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"B", "dup", "C"}, names)
	require.Nil(t, m.Subtree("missing"))

	names = nil
	for _, l := range m.Children("B") {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"dup", "C"}, names)
}

func TestDeepTree_NoRecursionLimit(t *testing.T) {
	b := NewBuilder()
	parent := b.Root(Layer{Name: "l0"})
	for i := 1; i < 100000; i++ {
		parent = b.Add(parent, Layer{Name: "x"})
	}
	b.Add(parent, Layer{Name: "leaf", Styles: []string{"s"}})
	m := b.Build()

	_, ok := m.FindLayer("leaf")
	require.True(t, ok)
	require.True(t, m.FindStyle("s"))
}

func TestEmptyModel(t *testing.T) {
	var m *Model
	_, ok := m.FindLayer("a")
	require.False(t, ok)
	require.False(t, m.FindStyle("a"))
	require.Empty(t, m.AllBoundingBoxes())
}

func TestWalk_Depths(t *testing.T) {
	var got []string
	sampleModel().Walk(func(l Layer, depth int) bool {
		got = append(got, strings.Repeat(".", depth)+l.Name)
		return true
	})
	require.Equal(t, []string{"root", ".A", "..dup", ".B", "..dup", "..C"}, got)

	n := 0
	sampleModel().Walk(func(Layer, int) bool { n++; return n < 2 })
	require.Equal(t, 2, n)

	var empty *Model
	empty.Walk(func(Layer, int) bool { t.Fatal("visited empty model"); return false })
}
