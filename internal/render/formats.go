package render

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// mime type -> image.Decode format name
var decoderFormats = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/tiff": "tiff",
	"image/bmp":  "bmp",
	"image/webp": "webp",
}

// SupportedFormats lists the mime types this package can decode, in the
// order a server is asked for them when nothing better is agreed.
func SupportedFormats() []string {
	return []string{"image/png", "image/jpeg", "image/gif", "image/tiff", "image/bmp", "image/webp"}
}

// Supported reports whether mimeType, ignoring parameters such as
// "mode=8bit", has a decoder.
func Supported(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	_, ok := decoderFormats[mt]
	return ok
}

// keeps the server's spelling so it can be echoed back in FORMAT
func supportedAmong(server []string) []string {
	var out []string
	for _, f := range server {
		if Supported(f) {
			out = append(out, f)
		}
	}
	return out
}
