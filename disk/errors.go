package disk

import "errors"

var (
	// ErrMissing reports that no committed entry exists for the key.
	ErrMissing = errors.New("twotier/disk: entry not found")

	// ErrStoreUnavailable reports that the backing store failed to open or
	// has been closed. Callers treat it as a miss; the next Clear retries
	// the open.
	ErrStoreUnavailable = errors.New("twotier/disk: store unavailable")

	// ErrEditInFlight reports that another editor already holds the key.
	ErrEditInFlight = errors.New("twotier/disk: edit already in flight")
)
