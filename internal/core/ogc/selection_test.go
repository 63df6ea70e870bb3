package ogc

import (
	"errors"
	"reflect"
	"testing"
)

func TestLayerSelection(t *testing.T) {
	ls := NewLayerSelection(testModel())
	if err := ls.Add("A"); err != nil {
		t.Fatal(err)
	}
	if err := ls.Add("B"); err != nil {
		t.Fatal(err)
	}
	if err := ls.Add("A"); !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("want ErrDuplicateLayer, got %v", err)
	}
	if err := ls.Add("nope"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("want ErrUnknownLayer, got %v", err)
	}
	if !reflect.DeepEqual(ls.Names(), []string{"A", "B"}) {
		t.Fatalf("names %v", ls.Names())
	}
	if err := ls.RemoveAt(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("want ErrIndexOutOfRange, got %v", err)
	}
	if err := ls.RemoveAt(0); err != nil {
		t.Fatal(err)
	}
	if !ls.Remove("B") || ls.Remove("B") {
		t.Fatal("remove B once")
	}
	if ls.Len() != 0 {
		t.Fatalf("len %d", ls.Len())
	}
}

func TestStyleSelection(t *testing.T) {
	ss := NewStyleSelection(testModel())
	if err := ss.Add("outline"); err != nil {
		t.Fatal(err)
	}
	if err := ss.Add("bold"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("want ErrUnknownStyle, got %v", err)
	}
	if err := ss.Add("outline"); !errors.Is(err, ErrDuplicateStyle) {
		t.Fatalf("want ErrDuplicateStyle, got %v", err)
	}
	names := ss.Names()
	names[0] = "mutated"
	if ss.Names()[0] != "outline" {
		t.Fatal("Names must return a copy")
	}
	ss.Clear()
	if ss.Len() != 0 {
		t.Fatal("clear")
	}
}
