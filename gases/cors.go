package gases

import (
	"strings"

	"github.com/catzilla-org/catzilla"
)

// CORSConfig defines the config for the CORS gas.
type CORSConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// AllowOrigins defines a list of origins that may access the resource.
	// Optional. Default value []string{"*"}.
	AllowOrigins []string

	// AllowCredentials indicates whether the response can be exposed when
	// the credentials flag is true.
	// Optional. Default value false.
	AllowCredentials bool

	// ExposeHeaders defines a whitelist of headers clients are allowed to
	// access.
	// Optional. Default value []string{}.
	ExposeHeaders []string

	// MaxAge indicates how long (in seconds) the results of a preflight
	// request can be cached.
	// Optional. Default value 0.
	MaxAge int
}

// DefaultCORSConfig is the default CORS gas config.
var DefaultCORSConfig = CORSConfig{
	Skipper:      defaultSkipper,
	AllowOrigins: []string{"*"},
}

func (c *CORSConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = DefaultCORSConfig.Skipper
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = DefaultCORSConfig.AllowOrigins
	}
}

// CORS returns a Cross-Origin Resource Sharing (CORS) gas.
func CORS() catzilla.Gas {
	return CORSWithConfig(DefaultCORSConfig)
}

// CORSWithConfig returns a CORS gas from config. See CORS.
func CORSWithConfig(config CORSConfig) catzilla.Gas {
	config.fill()
	exposeHeaders := strings.Join(config.ExposeHeaders, ",")

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			origin := req.Header("Origin")

			allowedOrigin := ""
			for _, o := range config.AllowOrigins {
				if o == "*" || o == origin {
					allowedOrigin = o
					break
				}
			}

			res.Header.Add("Vary", "Origin")
			if origin == "" || allowedOrigin == "" {
				return next(req, res)
			}

			res.Header.Set("Access-Control-Allow-Origin", allowedOrigin)
			if config.AllowCredentials {
				res.Header.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposeHeaders != "" {
				res.Header.Set("Access-Control-Expose-Headers", exposeHeaders)
			}
			return next(req, res)
		}
	}
}
