// Package catzilla implements a high-performance native HTTP server core:
// arena-backed request/response handling, a radix-trie router, chunked
// streaming, multipart upload handling, a compiled JSON validator, a
// dependency-injection container, an LRU response cache, and a priority-
// queue background task engine, wired together the way air.Air wires its
// own subsystems together.
package catzilla

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aofei/mimesniffer"

	"github.com/catzilla-org/catzilla/arena"
	"github.com/catzilla-org/catzilla/cache"
	"github.com/catzilla-org/catzilla/di"
	"github.com/catzilla-org/catzilla/internal/i18n"
	"github.com/catzilla-org/catzilla/internal/minifier"
	"github.com/catzilla-org/catzilla/internal/render"
	"github.com/catzilla-org/catzilla/router"
	"github.com/catzilla-org/catzilla/task"
)

// Handler serves one request, grounded on air.Handler — a plain function
// over (*Request, *Response) rather than a merged Context, matching the
// split Request/Response generation this package is built on.
type Handler func(*Request, *Response) error

// Gas is one middleware link, grounded on air.Gas: it wraps a Handler to
// produce a new Handler. A request's full chain is applied so that the
// first gas registered runs outermost, exactly as air.Air.ServeHTTP chains
// a.Gases.
type Gas func(Handler) Handler

// Catzilla is the server: it owns the router, the DI container, the
// response cache, the background task engine, and the HTTP listener
// lifecycle, playing the role air.Air plays in the teacher framework.
type Catzilla struct {
	Config Config
	Logger *Logger

	Router    *router.Router
	Container *di.Container
	Cache     *cache.Cache
	Tasks     *task.Engine

	// Pregases run before routing (so they see every request, even ones
	// that don't match a route); Gases run after a route is found, ahead
	// of its own route-level gases. Both are FILO, matching air.Air.
	Pregases []Gas
	Gases    []Gas

	NotFoundHandler         Handler
	MethodNotAllowedHandler Handler
	ErrorHandler            func(error, *Request, *Response)

	renderer *render.Renderer
	i18n     *i18n.I18n
	pool     *pool

	server *http.Server

	addressMap       map[string]int
	shutdownJobs     []func()
	shutdownJobMutex sync.Mutex
	shutdownJobDone  chan struct{}
}

// New returns a new Catzilla configured by cfg, with every subsystem wired
// up and ready to have routes registered, mirroring air.New()'s eager
// construction of a.router/a.binder/a.renderer/.../a.i18n.
func New(cfg Config) *Catzilla {
	c := &Catzilla{
		Config: cfg,
		Logger: NewLogger("catzilla", cfg.LoggerFormat),

		Router:    router.New(),
		Container: di.New(),
		Cache: cache.New(cache.Config{
			Capacity:     cfg.Cache.Capacity,
			DefaultTTL:   cfg.Cache.DefaultTTL,
			MaxValueSize: cfg.Cache.MaxValueSize,
		}),
		Tasks: task.Create(task.Config{
			Min:       cfg.Task.MinWorkers,
			Max:       cfg.Task.MaxWorkers,
			QueueSize: cfg.Task.QueueSize,
			AutoScale: cfg.Task.AutoScale,
		}),

		NotFoundHandler:         DefaultNotFoundHandler,
		MethodNotAllowedHandler: DefaultMethodNotAllowedHandler,
		ErrorHandler:            DefaultErrorHandler,

		pool: newPool(),

		server: &http.Server{},

		addressMap:      map[string]int{},
		shutdownJobDone: make(chan struct{}),
	}

	c.renderer = render.New(render.Options{
		Root:     "templates",
		Ext:      ".html",
		Minified: false,
	}, c.Logger)

	c.i18n = i18n.New(i18n.Options{
		Enabled:    cfg.I18n.Enabled,
		LocaleRoot: cfg.I18n.LocaleRoot,
		LocaleBase: cfg.I18n.LocaleBase,
	}, c.Logger)

	return c
}

// GET registers h for GET requests matching path.
func (c *Catzilla) GET(path string, h Handler, gases ...Gas) { c.add(http.MethodGet, path, h, gases...) }

// HEAD registers h for HEAD requests matching path.
func (c *Catzilla) HEAD(path string, h Handler, gases ...Gas) {
	c.add(http.MethodHead, path, h, gases...)
}

// POST registers h for POST requests matching path.
func (c *Catzilla) POST(path string, h Handler, gases ...Gas) {
	c.add(http.MethodPost, path, h, gases...)
}

// PUT registers h for PUT requests matching path.
func (c *Catzilla) PUT(path string, h Handler, gases ...Gas) { c.add(http.MethodPut, path, h, gases...) }

// PATCH registers h for PATCH requests matching path.
func (c *Catzilla) PATCH(path string, h Handler, gases ...Gas) {
	c.add(http.MethodPatch, path, h, gases...)
}

// DELETE registers h for DELETE requests matching path.
func (c *Catzilla) DELETE(path string, h Handler, gases ...Gas) {
	c.add(http.MethodDelete, path, h, gases...)
}

// OPTIONS registers h for OPTIONS requests matching path.
func (c *Catzilla) OPTIONS(path string, h Handler, gases ...Gas) {
	c.add(http.MethodOptions, path, h, gases...)
}

var allMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodConnect,
	http.MethodOptions, http.MethodTrace,
}

// BATCH registers h for every method in methods (or every HTTP method, if
// methods is nil) matching path.
func (c *Catzilla) BATCH(methods []string, path string, h Handler, gases ...Gas) {
	if methods == nil {
		methods = allMethods
	}
	for _, m := range methods {
		c.add(m, path, h, gases...)
	}
}

// FILE registers a GET+HEAD route pair at path serving the single file at
// filePath, minifying it on the fly when Response.Minified is set and its
// sniffed content type has a registered minifier, mirroring air/coffer.go's minify-on-read asset
// serving.
func (c *Catzilla) FILE(path, filePath string, gases ...Gas) {
	h := func(req *Request, res *Response) error {
		f, err := os.Open(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				return c.NotFoundHandler(req, res)
			}
			return Wrap(InternalError, err, "")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return Wrap(InternalError, err, "")
		}

		mimeType := mimesniffer.Sniff(data)
		res.Header.Set("Content-Type", mimeType)
		if res.Minified {
			if mb, merr := minifier.Singleton.Minify(mimeType, data); merr == nil {
				data = mb
			}
		}

		_, err = res.Write(data)
		return err
	}
	c.BATCH([]string{http.MethodGet, http.MethodHead}, path, h, gases...)
}

// FILES registers a catch-all GET+HEAD route pair under prefix serving
// files from the root directory, mirroring air.Air.FILES.
func (c *Catzilla) FILES(prefix, root string, gases ...Gas) {
	if strings.HasSuffix(prefix, "/") {
		prefix += "*"
	} else {
		prefix += "/*"
	}
	if root == "" {
		root = "."
	}

	h := func(req *Request, res *Response) error {
		rel := req.Param("*")
		clean := filepath.Clean(filepath.FromSlash("/" + rel))
		http.ServeFile(res.hrw, req.raw, filepath.Join(root, clean))
		res.Written = true
		return nil
	}
	c.BATCH([]string{http.MethodGet, http.MethodHead}, prefix, h, gases...)
}

// Group returns a new Group rooted at prefix, inheriting gases as its base
// gas chain.
func (c *Catzilla) Group(prefix string, gases ...Gas) *Group {
	return &Group{prefix: prefix, gases: gases, catzilla: c}
}

func (c *Catzilla) add(method, path string, h Handler, gases ...Gas) {
	chain := make([]router.Middleware, len(gases))
	for i, g := range gases {
		chain[i] = g
	}
	if err := c.Router.Add(method, path, router.Handler(h), chain); err != nil {
		c.Logger.Errorf("catzilla: failed to register route [%s %s]: %v", method, path, err)
	}
}

// ServeHTTP implements http.Handler, grounded on air.Air.ServeHTTP: it
// pulls a Request/Response pair (and their arenas) from the pool, opens a
// DI request scope, chains Pregases around routing and Gases around the
// matched handler, runs the chain, falls back to ErrorHandler on failure,
// runs deferred functions, and returns everything to the pool.
func (c *Catzilla) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	req := c.pool.Request()
	res := c.pool.Response()

	reqArena := c.pool.arenas.Get(arena.Request)
	resArena := c.pool.arenas.Get(arena.Response)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req.Catzilla = c
	req.Method = r.Method
	req.Path = r.URL.Path
	req.Query = r.URL.RawQuery
	req.URL = &URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, Query: r.URL.RawQuery}
	req.Proto = r.Proto
	req.Headers = r.Header
	req.Body = r.Body
	req.ContentLength = r.ContentLength
	req.RemoteAddr = r.RemoteAddr
	req.Values = map[string]interface{}{}
	req.arena = reqArena
	req.raw = r

	if rawCookies := r.Cookies(); len(rawCookies) > 0 {
		req.Cookies = make([]*Cookie, len(rawCookies))
		for i, rc := range rawCookies {
			req.Cookies[i] = &Cookie{Name: rc.Name, Value: rc.Value}
		}
	}

	res.Catzilla = c
	res.Status = http.StatusOK
	res.hrw = rw
	res.req = req
	res.arena = resArena

	scope := di.NewRequestScope()
	req.scope = scope

	h := func(req *Request, res *Response) error {
		match, miss := c.Router.Lookup(req.Method, req.Path)
		var inner Handler
		if miss != nil {
			if len(miss.AllowedMethods) > 0 {
				res.Header.Set("Allow", strings.Join(miss.AllowedMethods, ", "))
				inner = c.MethodNotAllowedHandler
			} else {
				inner = c.NotFoundHandler
			}
		} else {
			req.Params = match.PathParams
			inner = match.Route.Handler.(Handler)
			for i := len(match.Route.Chain) - 1; i >= 0; i-- {
				inner = match.Route.Chain[i].(Gas)(inner)
			}
		}

		for i := len(c.Gases) - 1; i >= 0; i-- {
			inner = c.Gases[i](inner)
		}

		return inner(req, res)
	}

	for i := len(c.Pregases) - 1; i >= 0; i-- {
		h = c.Pregases[i](h)
	}

	if err := h(req, res); err != nil {
		if !res.Written && res.Status < http.StatusBadRequest {
			res.Status = http.StatusInternalServerError
		}
		c.ErrorHandler(err, req, res)
	}

	res.runDeferred()

	c.pool.putRequest(req)
	c.pool.putResponse(res)
}

// DefaultNotFoundHandler is the default Handler used for unmatched routes.
func DefaultNotFoundHandler(req *Request, res *Response) error {
	return NewError(NotFound, "route not found: "+req.Path)
}

// DefaultMethodNotAllowedHandler is the default Handler used when a path
// matches but not the request method.
func DefaultMethodNotAllowedHandler(req *Request, res *Response) error {
	return NewError(MethodNotAllowed, "method not allowed: "+req.Method+" "+req.Path)
}

// DefaultErrorHandler is the default centralized error handler, grounded on
// air.DefaultErrorHandler: it maps a *Error's Kind to its spec.md §7 status
// code (falling back to 500 for any other error type) and writes a small
// JSON error body.
func DefaultErrorHandler(err error, req *Request, res *Response) {
	status := http.StatusInternalServerError
	message := err.Error()

	if cerr, ok := err.(*Error); ok {
		status = cerr.Kind.Status()
	}

	if !res.Written {
		res.Status = status
		res.WriteJSON(map[string]interface{}{
			"error": message,
		})
	}
}
