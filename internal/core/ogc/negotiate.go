package ogc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
)

var (
	ErrNoTransport       = errors.New("service advertises no transport method")
	ErrNoSupportedFormat = errors.New("no supported image format")
)

// tried before server order
var preferredFormats = []string{"image/jpeg", "image/png", "image/gif"}

// first GET, else first POST, else whatever was declared first
func SelectMethod(methods []capabilities.TransportMethod) (capabilities.TransportMethod, error) {
	if len(methods) == 0 {
		return capabilities.TransportMethod{}, ErrNoTransport
	}
	for _, m := range methods {
		if m.IsGet() {
			return m, nil
		}
	}
	for _, m := range methods {
		if m.IsPost() {
			return m, nil
		}
	}
	return methods[0], nil
}

// SelectFormat picks the output format for a service. A format must be
// offered by the server and decodable locally.
func SelectFormat(server, supported []string) (string, error) {
	for _, p := range preferredFormats {
		if contains(server, p) && contains(supported, p) {
			return p, nil
		}
	}
	for _, f := range server {
		if contains(supported, f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: server offers %v", ErrNoSupportedFormat, server)
}

func contains(list []string, mime string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), mime) {
			return true
		}
	}
	return false
}
