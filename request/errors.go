package request

import "errors"

var (
	// ErrInvalidInput signals malformed create arguments.
	ErrInvalidInput = errors.New("request: invalid input")
	// ErrNotFound signals the request does not exist.
	ErrNotFound = errors.New("request: not found")
	// ErrAlreadyClaimed signals a lost accept race; the caller must not
	// retry the same id.
	ErrAlreadyClaimed = errors.New("request: already claimed")
	// ErrInvalidTransition signals an attempted status change that
	// violates the state machine.
	ErrInvalidTransition = errors.New("request: invalid transition")
	// ErrRequestExists signals the requester already has a pending or
	// active request.
	ErrRequestExists = errors.New("request: requester already has a live request")
	// ErrForbidden signals the caller is not allowed to perform the
	// transition on this request.
	ErrForbidden = errors.New("request: forbidden")
)
