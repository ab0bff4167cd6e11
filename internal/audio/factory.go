package audio

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	globalMu   sync.Mutex
	globalCtx  Context
	globalErr  error
	globalOnce sync.Once
	globalType = ContextAuto
	globalOpts = DefaultOptions()
)

// NewContext creates a context of the requested type. ContextAuto falls
// back to a mock when no device is usable.
func NewContext(contextType ContextType, opts Options) (Context, error) {
	switch contextType {
	case ContextProduction:
		return NewProductionContext(opts, DetectPlatform())

	case ContextMock:
		return NewMockContext(opts), nil

	case ContextAuto:
		platform := DetectPlatform()
		if platform.ShouldUseMock() {
			reason := "no audio devices"
			if platform.IsCI {
				reason = "CI environment"
			}
			log.Info("Using mock audio context", "reason", reason)
			return NewMockContext(opts), nil
		}

		prodCtx, err := NewProductionContext(opts, platform)
		if err != nil {
			log.Warn("Failed to create production audio context, falling back to mock",
				"error", err,
				"platform", platform.OS)
			return NewMockContext(opts), nil
		}
		return prodCtx, nil

	default:
		return nil, fmt.Errorf("unknown audio context type: %v", contextType)
	}
}

// Configure sets the type and options used when the global context is
// first created. It has no effect once the context exists.
func Configure(contextType ContextType, opts Options) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalType = contextType
	globalOpts = opts
}

// GlobalContext returns the process-wide context, creating it on first use.
func GlobalContext() (Context, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalOnce.Do(func() {
		log.Debug("Creating global audio context", "type", globalType)
		globalCtx, globalErr = NewContext(globalType, globalOpts)
	})
	if globalErr != nil {
		return nil, globalErr
	}
	return globalCtx, nil
}

// SetGlobalContext replaces the global context, mainly for tests.
func SetGlobalContext(ctx Context) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalOnce.Do(func() {})
	globalCtx = ctx
	globalErr = nil
}

// ResetGlobalContext closes and forgets the global context.
func ResetGlobalContext() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx != nil {
		_ = globalCtx.Close()
	}
	globalCtx = nil
	globalErr = nil
	globalOnce = sync.Once{}
}
