package capabilities

import "strings"

type MethodKind string

const (
	MethodGet  MethodKind = "GET"
	MethodPost MethodKind = "POST"
)

// TransportMethod is one DCP entry of an operation: how and where to send it.
type TransportMethod struct {
	Kind     MethodKind
	Endpoint string
}

// IsGet and IsPost compare case-insensitively; servers are not consistent.
func (t TransportMethod) IsGet() bool  { return strings.EqualFold(string(t.Kind), string(MethodGet)) }
func (t TransportMethod) IsPost() bool { return strings.EqualFold(string(t.Kind), string(MethodPost)) }

// Operation describes one WMS request type as advertised by the server.
// Methods keep declaration order.
type Operation struct {
	Formats []string
	Methods []TransportMethod
}

func (o Operation) HasFormat(mime string) bool {
	for _, f := range o.Formats {
		if strings.EqualFold(f, mime) {
			return true
		}
	}
	return false
}

// Service is the capabilities-derived description of one WMS endpoint.
type Service struct {
	URL            string
	Title          string
	Version        string
	GetMap         Operation
	GetFeatureInfo Operation
	Layers         *Model
}
