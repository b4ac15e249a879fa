package gases

import (
	"fmt"

	"github.com/catzilla-org/catzilla"
)

// SecureConfig defines the config for the Secure gas.
type SecureConfig struct {
	// XSSProtection sets the X-XSS-Protection header.
	// Optional. Default value "1; mode=block".
	XSSProtection string

	// ContentTypeNosniff sets the X-Content-Type-Options header.
	// Optional. Default value "nosniff".
	ContentTypeNosniff string

	// XFrameOptions sets the X-Frame-Options header.
	// Optional. Default value "SAMEORIGIN".
	XFrameOptions string

	// HSTSMaxAge sets the Strict-Transport-Security header's max-age, in
	// seconds. Only applied to requests made over TLS (or that arrive with
	// X-Forwarded-Proto: https).
	// Optional. Default value 0 (disabled).
	HSTSMaxAge int

	// HSTSExcludeSubdomains omits "includeSubdomains" from the
	// Strict-Transport-Security header. Has no effect unless HSTSMaxAge is
	// non-zero.
	HSTSExcludeSubdomains bool

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// Optional. Default value "".
	ContentSecurityPolicy string
}

// DefaultSecureConfig is the default Secure gas config.
var DefaultSecureConfig = SecureConfig{
	XSSProtection:      "1; mode=block",
	ContentTypeNosniff: "nosniff",
	XFrameOptions:      "SAMEORIGIN",
}

// Secure returns a gas that sets a handful of security-related response
// headers guarding against XSS, content-type sniffing, clickjacking, and
// insecure connections.
func Secure() catzilla.Gas {
	return SecureWithConfig(DefaultSecureConfig)
}

// SecureWithConfig returns a Secure gas from config. See Secure.
func SecureWithConfig(config SecureConfig) catzilla.Gas {
	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) error {
			if config.XSSProtection != "" {
				res.Header.Set("X-XSS-Protection", config.XSSProtection)
			}
			if config.ContentTypeNosniff != "" {
				res.Header.Set("X-Content-Type-Options", config.ContentTypeNosniff)
			}
			if config.XFrameOptions != "" {
				res.Header.Set("X-Frame-Options", config.XFrameOptions)
			}
			if (req.IsTLS() || req.Header("X-Forwarded-Proto") == "https") && config.HSTSMaxAge != 0 {
				subdomains := ""
				if !config.HSTSExcludeSubdomains {
					subdomains = "; includeSubdomains"
				}
				res.Header.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d%s", config.HSTSMaxAge, subdomains))
			}
			if config.ContentSecurityPolicy != "" {
				res.Header.Set("Content-Security-Policy", config.ContentSecurityPolicy)
			}
			return next(req, res)
		}
	}
}
