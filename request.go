package catzilla

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/catzilla-org/catzilla/arena"
	"github.com/catzilla-org/catzilla/di"
	"github.com/catzilla-org/catzilla/validate"
)

// ErrCookieNotFound is returned by Request.Cookie when no cookie with the
// requested name was sent.
var ErrCookieNotFound = errors.New("catzilla: cookie not found")

// Request is Catzilla's inbound-request view, grounded on air/request.go's
// field shape, generalized with a per-request arena.Arena (spec.md §3:
// "REQUEST/RESPONSE arenas are request-local") and a Params map populated
// by the router the way air/router.go's route populates its path params.
type Request struct {
	Catzilla      *Catzilla
	Method        string
	Path          string
	Query         string
	URL           *URL
	Proto         string
	Headers       http.Header
	Body          io.Reader
	ContentLength int64
	Cookies       []*Cookie
	Params        map[string]string
	RemoteAddr    string

	// Values carries per-request, handler-opaque state — the request-
	// scoped analogue of air.Request.Values.
	Values map[string]interface{}

	arena *arena.Arena
	scope *di.RequestScope

	raw *http.Request
}

func newRequest() *Request {
	return &Request{}
}

func (r *Request) reset() {
	r.Catzilla = nil
	r.Method = ""
	r.Path = ""
	r.Query = ""
	r.URL = nil
	r.Proto = ""
	r.Headers = nil
	r.Body = nil
	r.ContentLength = 0
	r.Cookies = nil
	r.Params = nil
	r.RemoteAddr = ""
	r.Values = nil
	r.arena = nil
	r.scope = nil
	r.raw = nil
}

// Arena returns the REQUEST-tagged arena backing this request's short-lived
// allocations.
func (r *Request) Arena() *arena.Arena { return r.arena }

// Resolve resolves key from the Catzilla instance's Container, scoped to
// this request's di.RequestScope — the handler-facing entry point to
// spec.md §4.6's dependency injection.
func (r *Request) Resolve(key string) (interface{}, error) {
	return r.Catzilla.Container.Resolve(key, r.scope)
}

// Param returns the bound path parameter named name, or "" if absent.
func (r *Request) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// Localize resolves key to its localized string for this request's
// Accept-Language header, via the Catzilla instance's I18n config
// (§6 `i18n` block). When I18n is disabled, it returns key unchanged.
func (r *Request) Localize(key string) string {
	return r.Catzilla.i18n.Localize(r.Headers.Values("Accept-Language"))(key)
}

// Cookie returns the cookie named name sent with the request, or
// ErrCookieNotFound if none was sent.
func (r *Request) Cookie(name string) (*Cookie, error) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, ErrCookieNotFound
}

// QueryParam returns the first value of the query string parameter named
// name.
func (r *Request) QueryParam(name string) string {
	values, err := url.ParseQuery(r.Query)
	if err != nil {
		return ""
	}
	return values.Get(name)
}

// HTTPRequest returns the underlying *http.Request this Request was built
// from, for gases that need to drop down to net/http (serving static
// files, hijacking, etc).
func (r *Request) HTTPRequest() *http.Request { return r.raw }

// IsTLS reports whether the underlying connection was made over TLS.
func (r *Request) IsTLS() bool {
	return r.raw != nil && r.raw.TLS != nil
}

// Header returns the first value of the header named name.
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Bind parses the request body as JSON and validates it against spec,
// returning the validated, defaulted JSON value. It delegates to the
// validate package instead of air's reflection-based Bind, per spec.md
// §4.5's two-pass compiled-validator model.
func (r *Request) Bind(spec *validate.ModelSpec) (*validate.JSONValue, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, Wrap(ParseError, err, "")
	}

	raw, err := validate.ParseJSON(data)
	if err != nil {
		return nil, Wrap(ParseError, err, "")
	}

	out, verr := validate.Validate(spec, raw)
	if verr != nil {
		return nil, translateValidationError(verr)
	}
	return out, nil
}

// translateValidationError maps a validate.Errors (or single validate.Error)
// onto Catzilla's Kind taxonomy, per spec.md §7's Validation{Type|Range|
// Length|Pattern|Required|Custom} split.
func translateValidationError(err error) *Error {
	var kind Kind
	switch verrs := err.(type) {
	case validate.Errors:
		if len(verrs) == 0 {
			return NewError(ValidationCustom, err.Error())
		}
		kind = kindForValidateErrorKind(verrs[0].Kind)
	case *validate.Error:
		kind = kindForValidateErrorKind(verrs.Kind)
	default:
		kind = ValidationCustom
	}
	return Wrap(kind, err, "")
}

func kindForValidateErrorKind(k validate.ErrorKind) Kind {
	switch k {
	case validate.Type:
		return ValidationType
	case validate.Range:
		return ValidationRange
	case validate.Length:
		return ValidationLength
	case validate.Pattern:
		return ValidationPattern
	case validate.Required:
		return ValidationRequired
	default:
		return ValidationCustom
	}
}
