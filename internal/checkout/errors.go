package checkout

import "errors"

var (
	// ErrAuthenticationRequired is returned to guests; their cart has been
	// copied to the guest slot before returning.
	ErrAuthenticationRequired = errors.New("authentication required to check out")
	ErrNoResolvableLines      = errors.New("no cart line matches the inventory")
	ErrPartialResolution      = errors.New("some cart lines do not match the inventory")
	ErrSubmissionFailed       = errors.New("order submission failed")
	ErrCheckoutInFlight       = errors.New("a checkout is already running for this cart")
)
