// Package gases provides Catzilla's built-in Gas middleware: panic
// recovery, compression, CORS, security headers, authentication, request
// logging, and static file serving. Grounded on air's gases package, but
// rewritten against catzilla.Handler/catzilla.Gas's split Request/Response
// signature rather than air's merged Context.
package gases

import "github.com/catzilla-org/catzilla"

// Skipper defines a function to skip a gas for a given request. Returning
// true skips the gas, calling the wrapped handler directly.
type Skipper func(*catzilla.Request) bool

// defaultSkipper never skips.
func defaultSkipper(*catzilla.Request) bool { return false }
