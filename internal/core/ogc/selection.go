package ogc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
)

var (
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrUnknownStyle    = errors.New("unknown style")
	ErrDuplicateLayer  = errors.New("layer already selected")
	ErrDuplicateStyle  = errors.New("style already selected")
	ErrIndexOutOfRange = errors.New("selection index out of range")
)

// ordered names, checked against the model on insert
type selection struct {
	names     []string
	exists    func(string) bool
	unknown   error
	duplicate error
}

func (s *selection) add(name string) error {
	if !s.exists(name) {
		return fmt.Errorf("%w: %q", s.unknown, name)
	}
	for _, n := range s.names {
		if n == name {
			return fmt.Errorf("%w: %q", s.duplicate, name)
		}
	}
	s.names = append(s.names, name)
	return nil
}

func (s *selection) remove(name string) bool {
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			return true
		}
	}
	return false
}

func (s *selection) removeAt(i int) error {
	if i < 0 || i >= len(s.names) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	s.names = append(s.names[:i], s.names[i+1:]...)
	return nil
}

func (s *selection) list() []string { return append([]string(nil), s.names...) }

func (s *selection) join() string { return strings.Join(s.names, ",") }

// LayerSelection is the ordered set of layers a GetMap request draws.
type LayerSelection struct{ sel selection }

func NewLayerSelection(m *capabilities.Model) *LayerSelection {
	return &LayerSelection{sel: selection{
		exists: func(name string) bool {
			_, ok := m.FindLayer(name)
			return ok
		},
		unknown:   ErrUnknownLayer,
		duplicate: ErrDuplicateLayer,
	}}
}

// name must exist somewhere in the layer tree
func (l *LayerSelection) Add(name string) error { return l.sel.add(name) }
func (l *LayerSelection) Remove(name string) bool { return l.sel.remove(name) }
func (l *LayerSelection) RemoveAt(i int) error { return l.sel.removeAt(i) }
func (l *LayerSelection) Clear() { l.sel.names = nil }
func (l *LayerSelection) Names() []string { return l.sel.list() }
func (l *LayerSelection) Len() int { return len(l.sel.names) }

type StyleSelection struct{ sel selection }

func NewStyleSelection(m *capabilities.Model) *StyleSelection {
	return &StyleSelection{sel: selection{
		exists:    m.FindStyle,
		unknown:   ErrUnknownStyle,
		duplicate: ErrDuplicateStyle,
	}}
}

func (s *StyleSelection) Add(name string) error { return s.sel.add(name) }
func (s *StyleSelection) Remove(name string) bool { return s.sel.remove(name) }
func (s *StyleSelection) RemoveAt(i int) error { return s.sel.removeAt(i) }
func (s *StyleSelection) Clear() { s.sel.names = nil }
func (s *StyleSelection) Names() []string { return s.sel.list() }
func (s *StyleSelection) Len() int { return len(s.sel.names) }
