package gases

import (
	"fmt"
	"net/http"
	"path"

	"github.com/catzilla-org/catzilla"
)

// StaticConfig defines the config for the Static gas.
type StaticConfig struct {
	// Root is the directory static content is served from. Required.
	Root string

	// Index is the file served for a directory request.
	// Optional. Default value "index.html".
	Index string

	// HTML5 forwards every not-found request back to Index, so a
	// single-page application can handle its own client-side routing.
	// Optional. Default value false.
	HTML5 bool

	// Browse enables a directory listing when no Index file is present.
	// Optional. Default value false.
	Browse bool
}

// DefaultStaticConfig is the default Static gas config.
var DefaultStaticConfig = StaticConfig{
	Index: "index.html",
}

// Static returns a gas that serves static content from root.
func Static(root string) catzilla.Gas {
	c := DefaultStaticConfig
	c.Root = root
	return StaticWithConfig(c)
}

// StaticWithConfig returns a Static gas from config. See Static.
func StaticWithConfig(config StaticConfig) catzilla.Gas {
	if config.Index == "" {
		config.Index = DefaultStaticConfig.Index
	}

	fs := http.Dir(config.Root)

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			p := req.Param("*")
			if p == "" {
				p = req.Path
			}
			file := path.Clean("/" + p)

			f, err := fs.Open(file)
			if err != nil {
				nextErr := next(req, res)
				if cerr, ok := nextErr.(*catzilla.Error); ok && config.HTML5 && cerr.Kind == catzilla.NotFound {
					file = "/"
					f, err = fs.Open(file)
					if err != nil {
						return nextErr
					}
				} else {
					return nextErr
				}
			}
			defer f.Close()

			fi, err := f.Stat()
			if err != nil {
				return catzilla.Wrap(catzilla.InternalError, err, "")
			}

			if fi.IsDir() {
				dir := f
				file = path.Join(file, config.Index)
				f, err = fs.Open(file)
				if err == nil {
					if fi, err = f.Stat(); err != nil {
						return catzilla.Wrap(catzilla.InternalError, err, "")
					}
				} else if config.Browse {
					dirs, rerr := dir.Readdir(-1)
					if rerr != nil {
						return catzilla.Wrap(catzilla.InternalError, rerr, "")
					}

					res.Header.Set("Content-Type", "text/html; charset=utf-8")
					if _, err = fmt.Fprint(res, "<pre>\n"); err != nil {
						return err
					}
					for _, d := range dirs {
						name := d.Name()
						color := "#212121"
						if d.IsDir() {
							color = "#e91e63"
							name += "/"
						}
						if _, err = fmt.Fprintf(res, "<a href=\"%s\" style=\"color: %s;\">%s</a>\n", name, color, name); err != nil {
							return err
						}
					}
					_, err = fmt.Fprint(res, "</pre>\n")
					return err
				} else {
					return next(req, res)
				}
			}

			http.ServeContent(res.Writer(), req.HTTPRequest(), fi.Name(), fi.ModTime(), f)
			res.Written = true
			return nil
		}
	}
}
