package gases

import (
	"fmt"
	"runtime"

	"github.com/catzilla-org/catzilla"
)

// RecoverConfig defines the config for the Recover gas.
type RecoverConfig struct {
	// StackSize is the size of the stack trace to capture.
	// Optional. Default value 4KB.
	StackSize int

	// DisableStackAll disables capturing the stack traces of every other
	// goroutine in addition to the one that panicked.
	// Optional. Default value false.
	DisableStackAll bool

	// DisablePrintStack disables logging the captured stack trace.
	// Optional. Default value false.
	DisablePrintStack bool
}

// DefaultRecoverConfig is the default Recover gas config.
var DefaultRecoverConfig = RecoverConfig{
	StackSize: 4 << 10,
}

// Recover returns a gas that recovers from panics anywhere further down the
// chain and hands control to the Catzilla's ErrorHandler.
func Recover() catzilla.Gas {
	return RecoverWithConfig(DefaultRecoverConfig)
}

// RecoverWithConfig returns a Recover gas from config. See Recover.
func RecoverWithConfig(config RecoverConfig) catzilla.Gas {
	if config.StackSize == 0 {
		config.StackSize = DefaultRecoverConfig.StackSize
	}

	return func(next catzilla.Handler) catzilla.Handler {
		return func(req *catzilla.Request, res *catzilla.Response) (err error) {
			defer func() {
				if r := recover(); r != nil {
					switch v := r.(type) {
					case error:
						err = v
					default:
						err = fmt.Errorf("%v", v)
					}
					stack := make([]byte, config.StackSize)
					length := runtime.Stack(stack, !config.DisableStackAll)
					if !config.DisablePrintStack {
						req.Catzilla.Logger.Errorf("panic recovered: %s %s", err, stack[:length])
					}
					err = catzilla.Wrap(catzilla.InternalError, err, "")
				}
			}()
			return next(req, res)
		}
	}
}
