// Package render implements HTML template rendering with optional
// minification and live-reload on file change, grounded on
// air/renderer.go. Moved out of the root package and decoupled from the
// Air/Catzilla server type: it takes an Options value and a small Logger
// interface instead of reaching into the server struct for its config and
// logging calls, and uses the tdewolff/minify/v2 import paths the module's
// go.mod already pins.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// Data is the template data map passed to Render.
type Data = map[string]interface{}

// Logger is the narrow logging surface Renderer needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options configures a Renderer.
type Options struct {
	Root       string
	Ext        string
	Minified   bool
	Watched    bool
	LeftDelim  string
	RightDelim string
}

// Renderer renders named HTML templates under Root, reparsing them on
// change when Watched is set.
type Renderer struct {
	opts Options
	log  Logger

	template        *template.Template
	templateFuncMap template.FuncMap
	minifier        *minify.M
	watcher         *fsnotify.Watcher
}

// New returns a new Renderer.
func New(opts Options, log Logger) *Renderer {
	if opts.LeftDelim == "" {
		opts.LeftDelim = "{{"
	}
	if opts.RightDelim == "" {
		opts.RightDelim = "}}"
	}
	return &Renderer{
		opts:     opts,
		log:      log,
		template: template.New("template"),
		templateFuncMap: template.FuncMap{
			"strlen":  strlen,
			"strcat":  strcat,
			"substr":  substr,
			"timefmt": timefmt,
		},
	}
}

// SetTemplateFunc registers f as a template function named name.
func (r *Renderer) SetTemplateFunc(name string, f interface{}) {
	r.templateFuncMap[name] = f
}

// ParseTemplates parses every template file under Root matching Ext.
// e.g. Root == "templates" && Ext == ".html":
//
//	templates/index.html, templates/parts/header.html
//
// parse into named templates "index.html", "parts/header.html".
func (r *Renderer) ParseTemplates() error {
	if _, err := os.Stat(r.opts.Root); err != nil && os.IsNotExist(err) {
		return nil
	}

	if r.opts.Minified {
		r.minifier = minify.New()
		r.minifier.Add("text/html", &html.Minifier{
			KeepDefaultAttrVals: true,
			KeepDocumentTags:    true,
			KeepWhitespace:      true,
		})
	}

	if r.opts.Watched {
		var err error
		if r.watcher, err = fsnotify.NewWatcher(); err != nil {
			return err
		}

		dirs, err := walkDirs(r.opts.Root)
		if err != nil {
			return err
		}

		for _, dir := range dirs {
			if err := r.watcher.Add(dir); err != nil {
				return err
			}
		}

		go r.watchTemplates()
	}

	return r.parseTemplates()
}

// Render executes templateName into w with data.
func (r *Renderer) Render(w io.Writer, templateName string, data Data) error {
	return r.template.ExecuteTemplate(w, templateName, data)
}

func (r *Renderer) parseTemplates() error {
	tr := filepath.Clean(r.opts.Root)
	if _, err := os.Stat(tr); err != nil && os.IsNotExist(err) {
		return nil
	}

	dirs, err := walkDirs(tr)
	if err != nil {
		return err
	}

	var filenames []string
	for _, dir := range dirs {
		fns, err := filepath.Glob(fmt.Sprintf("%s/*%s", dir, r.opts.Ext))
		if err != nil {
			return err
		}
		filenames = append(filenames, fns...)
	}

	buf := &bytes.Buffer{}

	t := template.New("template")
	t.Funcs(r.templateFuncMap)
	t.Delims(r.opts.LeftDelim, r.opts.RightDelim)

	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return err
		}

		if r.opts.Minified {
			if err := r.minifier.Minify("text/html", buf, bytes.NewReader(b)); err != nil {
				return err
			}
			b = buf.Bytes()
			buf.Reset()
		}

		start := 0
		if tr != "." {
			start = len(tr) + 1
		}

		name := filepath.ToSlash(filename[start:])
		if _, err := t.New(name).Parse(string(b)); err != nil {
			return err
		}
	}

	r.template = t

	return nil
}

func (r *Renderer) watchTemplates() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if r.log != nil {
				r.log.Infof("render: template file event: %s", event.String())
			}

			if event.Op == fsnotify.Create {
				s := event.String()
				s = s[:strings.Index(s, ":")]
				s = s[1 : len(s)-1]
				if filepath.Ext(s) != r.opts.Ext {
					r.watcher.Add(s)
				}
			}

			if err := r.parseTemplates(); err != nil && r.log != nil {
				r.log.Errorf("render: failed to reparse templates: %v", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.log != nil {
				r.log.Errorf("render: watcher error: %v", err)
			}
		}
	}
}

// Close stops the underlying file watcher, if Watched was set.
func (r *Renderer) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}

func walkDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func strlen(s string) int { return len([]rune(s)) }

func strcat(s string, ss ...string) string {
	for i := range ss {
		s = fmt.Sprintf("%s%s", s, ss[i])
	}
	return s
}

func substr(s string, i, j int) string {
	rs := []rune(s)
	return string(rs[i:j])
}

func timefmt(t time.Time, layout string) string { return t.Format(layout) }
