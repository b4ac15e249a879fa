package gases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"github.com/catzilla-org/catzilla"
)

// jwtExtractor pulls a raw JWT string out of a request.
type jwtExtractor func(*catzilla.Request) (string, error)

// JWTConfig defines the config for the JWT gas.
type JWTConfig struct {
	// Skipper defines a function to skip the gas.
	Skipper Skipper

	// SigningKey validates the token. Required.
	SigningKey interface{}

	// SigningMethod checks the token's signing method.
	// Optional. Default value HS256.
	SigningMethod string

	// ContextKey is the Request.Values key the parsed token is stored
	// under.
	// Optional. Default value "user".
	ContextKey string

	// Claims is the extendable claims type the token is parsed into.
	// Optional. Default value jwt.MapClaims{}.
	Claims jwt.Claims

	// TokenLookup is a string in the form "<source>:<name>" describing
	// where to extract the token from.
	// Optional. Default value "header:Authorization".
	// Possible values:
	// - "header:<name>"
	// - "query:<name>"
	// - "cookie:<name>"
	TokenLookup string
}

const (
	bearerScheme = "Bearer"

	// AlgorithmHS256 is the signing method most JWTConfig.SigningMethod
	// values name.
	AlgorithmHS256 = "HS256"
)

// DefaultJWTConfig is the default JWT gas config.
var DefaultJWTConfig = JWTConfig{
	Skipper:       defaultSkipper,
	SigningMethod: AlgorithmHS256,
	ContextKey:    "user",
	Claims:        jwt.MapClaims{},
	TokenLookup:   "header:Authorization",
}

func (c *JWTConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = DefaultJWTConfig.Skipper
	}
	if c.SigningKey == nil {
		panic("gases: jwt gas requires a signing key")
	}
	if c.SigningMethod == "" {
		c.SigningMethod = DefaultJWTConfig.SigningMethod
	}
	if c.ContextKey == "" {
		c.ContextKey = DefaultJWTConfig.ContextKey
	}
	if c.Claims == nil {
		c.Claims = DefaultJWTConfig.Claims
	}
	if c.TokenLookup == "" {
		c.TokenLookup = DefaultJWTConfig.TokenLookup
	}
}

// JWT returns a JSON Web Token auth gas signed with key.
//
// For a valid token it stores the parsed token under Request.Values and
// calls the next handler. For an invalid token it returns a 401 error. For
// an empty or malformed token it returns a 400 error.
func JWT(key []byte) catzilla.Gas {
	c := DefaultJWTConfig
	c.SigningKey = key
	return JWTWithConfig(c)
}

// JWTWithConfig returns a JWT gas from config. See JWT.
func JWTWithConfig(config JWTConfig) catzilla.Gas {
	config.fill()

	parts := strings.SplitN(config.TokenLookup, ":", 2)
	extractor := jwtFromHeader(parts[1])
	switch parts[0] {
	case "query":
		extractor = jwtFromQuery(parts[1])
	case "cookie":
		extractor = jwtFromCookie(parts[1])
	}

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.Skipper(req) {
				return next(req, res)
			}

			raw, err := extractor(req)
			if err != nil {
				return catzilla.Wrap(catzilla.ParseError, err, "")
			}

			token, err := jwt.ParseWithClaims(raw, config.Claims, func(t *jwt.Token) (interface{}, error) {
				if t.Method.Alg() != config.SigningMethod {
					return nil, fmt.Errorf("unexpected jwt signing method: %v", t.Header["alg"])
				}
				return config.SigningKey, nil
			})
			if err == nil && token.Valid {
				req.Values[config.ContextKey] = token
				return next(req, res)
			}
			return catzilla.NewError(catzilla.Unauthorized, "invalid or expired jwt")
		}
	}
}

func jwtFromHeader(header string) jwtExtractor {
	return func(req *catzilla.Request) (string, error) {
		auth := req.Header(header)
		l := len(bearerScheme)
		if len(auth) > l+1 && auth[:l] == bearerScheme {
			return auth[l+1:], nil
		}
		return "", errors.New("empty or invalid jwt in request header")
	}
}

func jwtFromQuery(param string) jwtExtractor {
	return func(req *catzilla.Request) (string, error) {
		token := req.QueryParam(param)
		if token == "" {
			return "", errors.New("empty jwt in query string")
		}
		return token, nil
	}
}

func jwtFromCookie(name string) jwtExtractor {
	return func(req *catzilla.Request) (string, error) {
		cookie, err := req.Cookie(name)
		if err != nil {
			return "", errors.New("empty jwt in cookie")
		}
		return cookie.Value, nil
	}
}
