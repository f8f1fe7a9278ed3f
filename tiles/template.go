package tiles

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olablt/gio-geoview/geo"
	"github.com/valyala/fasttemplate"
)

// URL template presets.
const (
	OSMTemplate  = "https://tile.openstreetmap.org/${z}/${x}/${y}.png"
	BingTemplate = "https://ecn.t${s}.tiles.virtualearth.net/tiles/a${qk}.jpeg?g=1&mkt=${lcl}"
)

// Template renders tile URLs from placeholders: ${z} ${x} ${y} for the
// address, ${qk} for the quad key, ${lcl} for the locale and ${s} for a
// server picked from the address.
type Template struct {
	raw     string
	tpl     *fasttemplate.Template
	Locale  string
	Servers []string
}

func NewTemplate(raw string) (*Template, error) {
	tpl, err := fasttemplate.NewTemplate(raw, "${", "}")
	if err != nil {
		return nil, fmt.Errorf("parse url template %q: %w", raw, err)
	}
	return &Template{raw: raw, tpl: tpl, Locale: "en-US", Servers: []string{"0", "1", "2", "3"}}, nil
}

// MustTemplate is NewTemplate for presets; it panics on a bad template.
func MustTemplate(raw string) *Template {
	t, err := NewTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string { return t.raw }

// URL returns the address of pos.
func (t *Template) URL(pos geo.TilePos) string {
	return t.tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "z":
			return w.Write(strconv.AppendInt(nil, int64(pos.Zoom), 10))
		case "x":
			return w.Write(strconv.AppendInt(nil, int64(pos.X), 10))
		case "y":
			return w.Write(strconv.AppendInt(nil, int64(pos.Y), 10))
		case "qk":
			return io.WriteString(w, pos.QuadKey())
		case "lcl":
			return io.WriteString(w, t.Locale)
		case "s":
			if len(t.Servers) == 0 {
				return 0, nil
			}
			return io.WriteString(w, t.Servers[(pos.X+pos.Y)%len(t.Servers)])
		default:
			return io.WriteString(w, "${"+tag+"}")
		}
	})
}
