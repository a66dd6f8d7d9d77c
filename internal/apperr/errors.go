// Package apperr defines the error taxonomy shared by the store, the capture
// registry and the recording session.
package apperr

import "errors"

var (
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrWriteFailed             = errors.New("write failed")
	ErrReadFailed              = errors.New("read failed")
	ErrDeleteFailed            = errors.New("delete failed")
	ErrNotFound                = errors.New("not found")
	ErrStreamAcquisitionFailed = errors.New("stream acquisition failed")
	ErrEnumerationFailed       = errors.New("enumeration failed")
)
