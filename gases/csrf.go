package gases

import (
	"crypto/subtle"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/catzilla-org/catzilla"
)

// csrfTokenExtractor pulls a client-supplied CSRF token out of a request.
type csrfTokenExtractor func(*catzilla.Request) (string, error)

// CSRFConfig defines the config for the CSRF gas.
type CSRFConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// TokenLength is the length of the generated token.
	// Optional. Default value 32.
	TokenLength uint8

	// TokenLookup is a string in the form "<source>:<name>" describing
	// where to extract the client's token from.
	// Optional. Default value "header:X-CSRF-Token".
	// Possible values:
	// - "header:<name>"
	// - "query:<name>"
	TokenLookup string

	// ContextKey is the Request.Values key the generated token is stored
	// under.
	// Optional. Default value "csrf".
	ContextKey string

	// CookieName names the cookie the token is persisted in.
	// Optional. Default value "_csrf".
	CookieName string
	// CookieDomain is the CSRF cookie's domain. Optional.
	CookieDomain string
	// CookiePath is the CSRF cookie's path. Optional.
	CookiePath string
	// CookieMaxAge is the CSRF cookie's max age, in seconds.
	// Optional. Default value 86400 (24h).
	CookieMaxAge int
	// CookieSecure marks the CSRF cookie Secure. Optional.
	CookieSecure bool
	// CookieHTTPOnly marks the CSRF cookie HttpOnly. Optional.
	CookieHTTPOnly bool
}

// DefaultCSRFConfig is the default CSRF gas config.
var DefaultCSRFConfig = CSRFConfig{
	Skipper:      defaultSkipper,
	TokenLength:  32,
	TokenLookup:  "header:X-CSRF-Token",
	ContextKey:   "csrf",
	CookieName:   "_csrf",
	CookieMaxAge: 86400,
}

func (c *CSRFConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = DefaultCSRFConfig.Skipper
	}
	if c.TokenLength == 0 {
		c.TokenLength = DefaultCSRFConfig.TokenLength
	}
	if c.TokenLookup == "" {
		c.TokenLookup = DefaultCSRFConfig.TokenLookup
	}
	if c.ContextKey == "" {
		c.ContextKey = DefaultCSRFConfig.ContextKey
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCSRFConfig.CookieName
	}
	if c.CookieMaxAge == 0 {
		c.CookieMaxAge = DefaultCSRFConfig.CookieMaxAge
	}
}

// CSRF returns a Cross-Site Request Forgery gas.
// See https://en.wikipedia.org/wiki/Cross-site_request_forgery
func CSRF() catzilla.Gas {
	return CSRFWithConfig(DefaultCSRFConfig)
}

// CSRFWithConfig returns a CSRF gas from config. See CSRF.
func CSRFWithConfig(config CSRFConfig) catzilla.Gas {
	config.fill()

	parts := strings.SplitN(config.TokenLookup, ":", 2)
	extractor := csrfTokenFromHeader(parts[1])
	if parts[0] == "query" {
		extractor = csrfTokenFromQuery(parts[1])
	}

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			token := ""
			if k, err := req.Cookie(config.CookieName); err == nil {
				token = k.Value
			} else {
				token = randomToken(config.TokenLength)
			}

			if req.Method != "GET" && req.Method != "HEAD" && req.Method != "OPTIONS" {
				clientToken, err := extractor(req)
				if err != nil {
					return catzilla.Wrap(catzilla.ParseError, err, "")
				}
				if !validateCSRFToken(token, clientToken) {
					return catzilla.NewError(catzilla.Unauthorized, "csrf token is invalid")
				}
			}

			res.SetCookie(&catzilla.Cookie{
				Name:     config.CookieName,
				Value:    token,
				Path:     config.CookiePath,
				Domain:   config.CookieDomain,
				Expires:  time.Now().Add(time.Duration(config.CookieMaxAge) * time.Second),
				Secure:   config.CookieSecure,
				HTTPOnly: config.CookieHTTPOnly,
			})

			req.Values[config.ContextKey] = token
			res.Header.Add("Vary", "Cookie")

			return next(req, res)
		}
	}
}

func csrfTokenFromHeader(header string) csrfTokenExtractor {
	return func(req *catzilla.Request) (string, error) {
		return req.Header(header), nil
	}
}

func csrfTokenFromQuery(param string) csrfTokenExtractor {
	return func(req *catzilla.Request) (string, error) {
		token := req.QueryParam(param)
		if token == "" {
			return "", errors.New("empty csrf token in query param")
		}
		return token, nil
	}
}

func validateCSRFToken(token, clientToken string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(clientToken)) == 1
}

const csrfAlphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomToken(length uint8) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = csrfAlphanumeric[rand.Int63()%int64(len(csrfAlphanumeric))]
	}
	return string(b)
}
