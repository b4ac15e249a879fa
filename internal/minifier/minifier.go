// Package minifier wraps tdewolff/minify/v2 into the single narrow
// operation response.go needs: minify content by MIME type, lazily
// registering a minifier for that type on first use. Grounded on
// air/minifier.go, moved out of the root package (it has no dependency on
// Catzilla itself) and updated to the v2 import paths the module's go.mod
// already pins.
package minifier

import (
	"bytes"
	"errors"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// Minifier minifies content by MIME type.
type Minifier struct {
	m *minify.M
}

// Singleton is the package-wide minifier instance, mirroring
// air.minifierSingleton — tdewolff's per-MIME-type registration is
// process-global in practice, so one shared instance avoids redundant
// registration work per Catzilla instance.
var Singleton = &Minifier{m: minify.New()}

// Minify minifies b according to mimeType, registering a minifier for that
// type (if one of the known kinds) on first encounter.
func (mf *Minifier) Minify(mimeType string, b []byte) ([]byte, error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = ss[0]
	}

	buf := &bytes.Buffer{}
	err := mf.m.Minify(mimeType, buf, bytes.NewReader(b))
	if err == nil {
		return buf.Bytes(), nil
	}
	if err != minify.ErrNotExist {
		return nil, err
	}

	switch mimeType {
	case "text/html":
		mf.m.Add(mimeType, html.DefaultMinifier)
	case "text/css":
		mf.m.Add(mimeType, css.DefaultMinifier)
	case "text/javascript":
		mf.m.Add(mimeType, js.DefaultMinifier)
	case "application/json":
		mf.m.Add(mimeType, json.DefaultMinifier)
	case "text/xml":
		mf.m.Add(mimeType, xml.DefaultMinifier)
	case "image/svg+xml":
		mf.m.Add(mimeType, svg.DefaultMinifier)
	case "image/jpeg":
		mf.m.AddFunc(mimeType, func(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
			img, err := jpeg.Decode(r)
			if err != nil {
				return err
			}
			return jpeg.Encode(w, img, nil)
		})
	case "image/png":
		mf.m.AddFunc(mimeType, func(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
			img, err := png.Decode(r)
			if err != nil {
				return err
			}
			return (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(w, img)
		})
	default:
		return nil, errors.New("minifier: unsupported mime type")
	}

	return mf.Minify(mimeType, b)
}
