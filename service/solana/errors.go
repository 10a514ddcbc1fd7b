package solana

import "errors"

var (
	// ErrInvalidAddress is returned when the address does not decode as a
	// public key. It is raised before any network call.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUpstreamUnavailable is returned when the balance or signature
	// lookup fails. The whole fetch is aborted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrTransactionFetch marks a single transaction body that could not be
	// fetched or decoded. It never aborts a fetch; the record is dropped.
	ErrTransactionFetch = errors.New("transaction fetch failed")
)

// FetchError is an aborting failure of a history fetch.
// Error returns the underlying message verbatim so it can be shown to the
// user as-is; errors.Is matches both the kind and the cause.
type FetchError struct {
	Kind error
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func invalidAddress(err error) error {
	return &FetchError{Kind: ErrInvalidAddress, Op: "decode_address", Err: err}
}

func upstreamUnavailable(op string, err error) error {
	return &FetchError{Kind: ErrUpstreamUnavailable, Op: op, Err: err}
}
