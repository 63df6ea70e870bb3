package keys

import (
	"regexp"
	"strings"
	"testing"
)

func TestImage_Determinism(t *testing.T) {
	svc := "http://example.com/wms"
	u := "http://example.com/wms?REQUEST=GetMap&BBOX=0,0,1,1&LAYERS=a"
	if Image(svc, u) != Image(svc, u) {
		t.Fatal("same inputs must give the same key")
	}
}

func TestImage_ParamOrderAndCase(t *testing.T) {
	svc := "http://example.com/wms"
	a := Image(svc, "http://Example.com/wms?REQUEST=GetMap&layers=roads&BBOX=0,0,1,1")
	b := Image(svc, "http://example.com/wms?bbox=0,0,1,1&LAYERS=roads&request=GetMap")
	if a != b {
		t.Fatalf("normalized keys differ:\n a=%s\n b=%s", a, b)
	}
}

func TestImage_ValuesStayCaseSensitive(t *testing.T) {
	svc := "http://example.com/wms"
	a := Image(svc, "http://example.com/wms?LAYERS=Roads")
	b := Image(svc, "http://example.com/wms?LAYERS=roads")
	if a == b {
		t.Fatal("layer names differing in case must not collide")
	}
}

func TestImage_SharesServicePrefix(t *testing.T) {
	svc := "http://example.com/wms"
	k := Image(svc, "http://example.com/wms?LAYERS=a")
	if !strings.HasPrefix(k, ServicePrefix(svc)) {
		t.Fatalf("key %s lacks prefix %s", k, ServicePrefix(svc))
	}
	if strings.HasPrefix(k, ServicePrefix("http://other.com/wms")) {
		t.Fatal("key matched another service prefix")
	}
	if !regexp.MustCompile(`^wms:img:[0-9a-f]{16}:[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("unexpected key shape %s", k)
	}
}

func TestNormalizeURL(t *testing.T) {
	got := NormalizeURL(" HTTP://H/wms?b=2&&a=1#frag ")
	if got != "http://h/wms?A=1&B=2" {
		t.Fatalf("got %s", got)
	}
}
