package memsource

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

func names(fs []*geojson.Feature) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Properties.MustString("name"))
	}
	return out
}

func TestLoadFile_Query(t *testing.T) {
	s, err := LoadFile("testdata/places.geojson", DefaultResolution)
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())

	// Around Stockholm: the city, the road through it and the wide polygon.
	got, err := s.Query(context.Background(), orb.Bound{Min: orb.Point{18.0, 59.3}, Max: orb.Point{18.1, 59.4}})
	require.NoError(t, err)
	require.Equal(t, []string{"Stockholm", "E4", "Nordics"}, names(got))

	// Gothenburg only, plus the polygon.
	got, err = s.Query(context.Background(), orb.Bound{Min: orb.Point{11.9, 57.7}, Max: orb.Point{12.0, 57.75}})
	require.NoError(t, err)
	require.Equal(t, []string{"Gothenburg", "Nordics"}, names(got))

	// Far away.
	got, err = s.Query(context.Background(), orb.Bound{Min: orb.Point{-74.1, 40.6}, Max: orb.Point{-73.9, 40.8}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestQuery_LargeBoxScans(t *testing.T) {
	s, err := LoadFile("testdata/places.geojson", DefaultResolution)
	require.NoError(t, err)
	got, err := s.Query(context.Background(), orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	require.NoError(t, err)
	require.Len(t, got, 5)
}

func TestQuery_MatchesLinearScan(t *testing.T) {
	s, err := New(7)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	var all []*geojson.Feature
	for i := 0; i < 2000; i++ {
		p := orb.Point{10 + rng.Float64(), 50 + rng.Float64()}
		f := geojson.NewFeature(p)
		all = append(all, f)
	}
	s.Add(all...)

	for i := 0; i < 50; i++ {
		x, y := 10+rng.Float64()*0.9, 50+rng.Float64()*0.9
		box := orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x + rng.Float64()*0.1, y + rng.Float64()*0.002}}
		got, err := s.Query(context.Background(), box)
		require.NoError(t, err)

		var want []*geojson.Feature
		for _, f := range all {
			if f.Geometry.Bound().Intersects(box) {
				want = append(want, f)
			}
		}
		require.Equal(t, len(want), len(got), "box %v", box)
		for j := range want {
			require.Same(t, want[j], got[j])
		}
	}
}

func TestAdd_SkipsEmptyAndOutOfRange(t *testing.T) {
	s, err := New(DefaultResolution)
	require.NoError(t, err)
	s.Add(nil, &geojson.Feature{}, geojson.NewFeature(orb.Point{500, 500}))
	require.Equal(t, 1, s.Len())

	got, err := s.Query(context.Background(), orb.Bound{Min: orb.Point{499, 499}, Max: orb.Point{501, 501}})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestNew_InvalidResolution(t *testing.T) {
	_, err := New(16)
	require.ErrorIs(t, err, ErrInvalidResolution)
	_, err = New(-1)
	require.ErrorIs(t, err, ErrInvalidResolution)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("{"), DefaultResolution)
	require.Error(t, err)
	_, err = LoadFile("testdata/missing.geojson", DefaultResolution)
	require.Error(t, err)
}

func TestQuery_CanceledContext(t *testing.T) {
	s, err := New(DefaultResolution)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Query(ctx, orb.Bound{})
	require.ErrorIs(t, err, context.Canceled)
}
