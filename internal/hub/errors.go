package hub

import "git.home.luguber.info/inful/mobilecore/internal/foundation/errors"

var (
	// ErrModuleNotAttached is returned when a module is used before it was ever registered with a hub.
	ErrModuleNotAttached = errors.ContractError("module is not attached to an event hub").Build()
	// ErrModuleAlreadyAttached is returned when a module value is registered a second time.
	ErrModuleAlreadyAttached = errors.ContractError("module was already attached to an event hub").Build()
	// ErrModuleAlreadyRegistered is returned when the hub already holds a module with the same name.
	ErrModuleAlreadyRegistered = errors.AlreadyExistsError("module already registered").Build()
	// ErrInvalidModule is returned for a nil module or one without a name.
	ErrInvalidModule = errors.ValidationError("invalid module").Build()
	// ErrNilEvent is returned when dispatching a nil event.
	ErrNilEvent = errors.ContractError("cannot dispatch a nil event").Build()
	// ErrHubDisposed is returned by operations on a disposed hub.
	ErrHubDisposed = errors.EventHubError("event hub disposed").Build()
)
