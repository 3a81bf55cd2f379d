package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrEmpty             = errors.New("transcript is empty")
	ErrBusy              = errors.New("a response is already streaming")
	ErrNoSession         = errors.New("no active model session")
	ErrUnsupported       = errors.New("speech capture is not supported")
	ErrMissingCredential = errors.New("API credential is not set")
)
