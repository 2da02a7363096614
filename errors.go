package retouch

import "errors"

// Conditions reported by the editor. Transform functions never fail; these
// surface from the session, crop and batch layers and are matched with
// errors.Is.
var (
	// ErrPermissionDenied is returned when a premium operation is invoked
	// without the premium capability.
	ErrPermissionDenied = errors.New("retouch: premium capability required")

	// ErrCapacityExceeded is returned when a batch upload would push the
	// batch past its entry limit. Nothing from the group is accepted.
	ErrCapacityExceeded = errors.New("retouch: batch capacity exceeded")

	// ErrEmptySelection is returned when a crop is committed without a
	// non-empty selection.
	ErrEmptySelection = errors.New("retouch: empty crop selection")

	// ErrDecode wraps failures to turn file bytes into a raster buffer.
	ErrDecode = errors.New("retouch: cannot decode image")

	// ErrBusy is returned when a mutating call arrives while another one is
	// still pending on the same session.
	ErrBusy = errors.New("retouch: session busy")

	// ErrNoImage is returned by operations that need a loaded image.
	ErrNoImage = errors.New("retouch: no image loaded")

	// ErrNotCropping is returned by crop calls made outside crop mode.
	ErrNotCropping = errors.New("retouch: not in crop mode")

	// ErrInvalidQuality is returned for quality factors outside (0, 1].
	ErrInvalidQuality = errors.New("retouch: quality must be in (0, 1]")

	// ErrNoEntries is returned when exporting an empty batch.
	ErrNoEntries = errors.New("retouch: batch is empty")

	// ErrEntryNotFound is returned for batch indexes that do not exist.
	ErrEntryNotFound = errors.New("retouch: batch entry not found")
)
