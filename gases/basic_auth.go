package gases

import (
	"encoding/base64"

	"github.com/catzilla-org/catzilla"
)

// BasicAuthValidator validates a username/password pair extracted from an
// Authorization: Basic header.
type BasicAuthValidator func(username, password string) bool

// BasicAuthConfig defines the config for the BasicAuth gas.
type BasicAuthConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// Validator validates extracted credentials. Required.
	Validator BasicAuthValidator
}

// DefaultBasicAuthConfig is the default BasicAuth gas config.
var DefaultBasicAuthConfig = BasicAuthConfig{
	Skipper: defaultSkipper,
}

func (c *BasicAuthConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = DefaultBasicAuthConfig.Skipper
	}
	if c.Validator == nil {
		panic("gases: basic-auth gas requires a validator function")
	}
}

const basicAuthScheme = "Basic"

// BasicAuth returns a BasicAuth gas.
//
// For valid credentials it calls the next handler. For a Basic credential
// payload that is not valid base64 it returns a 400 error. For invalid
// credentials, or an empty or non-Basic Authorization header, it returns a
// 401 error.
func BasicAuth(fn BasicAuthValidator) catzilla.Gas {
	c := DefaultBasicAuthConfig
	c.Validator = fn
	return BasicAuthWithConfig(c)
}

// BasicAuthWithConfig returns a BasicAuth gas from config. See BasicAuth.
func BasicAuthWithConfig(config BasicAuthConfig) catzilla.Gas {
	config.fill()

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			auth := req.Header("Authorization")
			l := len(basicAuthScheme)

			if len(auth) > l+1 && auth[:l] == basicAuthScheme {
				b, err := base64.StdEncoding.DecodeString(auth[l+1:])
				if err != nil {
					return catzilla.Wrap(catzilla.ParseError, err, "malformed basic auth credentials")
				}
				cred := string(b)
				for i := 0; i < len(cred); i++ {
					if cred[i] == ':' {
						if config.Validator(cred[:i], cred[i+1:]) {
							return next(req, res)
						}
						break
					}
				}
			}

			// Need to return 401 for browsers to pop up their login box.
			res.Header.Set("WWW-Authenticate", basicAuthScheme+` realm="Restricted"`)
			return catzilla.NewError(catzilla.Unauthorized, "invalid or missing basic auth credentials")
		}
	}
}
