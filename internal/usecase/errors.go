package usecase

import "errors"

// Error kinds surfaced in command acknowledgements. Services wrap them with
// fmt.Errorf("%w: ...") so callers match with errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("resource not found")
	ErrStateConflict = errors.New("state conflict")
	ErrNotReady      = errors.New("not ready")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTransient     = errors.New("transient failure")
	ErrFatal         = errors.New("fatal state")
	ErrAlreadySynced = errors.New("meet already synced")
)

// Kind names an error class for acks and logs.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "BadInput"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrStateConflict):
		return "StateConflict"
	case errors.Is(err, ErrNotReady):
		return "NotReady"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrTransient):
		return "Transient"
	case errors.Is(err, ErrAlreadySynced):
		return "AlreadySynced"
	case errors.Is(err, ErrFatal):
		return "Fatal"
	default:
		return "Internal"
	}
}
