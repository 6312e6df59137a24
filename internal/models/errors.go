package models

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateSerialNumber = errors.New("asset with this serial number already exists")
	ErrInvalidCategory       = errors.New("invalid category")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidState          = errors.New("operation not allowed in current asset state")
	ErrAlreadyAssigned       = errors.New("asset already has an open assignment")
	ErrNoOpenAssignment      = errors.New("asset has no open assignment")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidArgument       = errors.New("invalid argument")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrDuplicateSerialNumber, "DUPLICATE_SERIAL_NUMBER"},
	{ErrInvalidCategory, "INVALID_CATEGORY"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrAlreadyAssigned, "ALREADY_ASSIGNED"},
	{ErrNoOpenAssignment, "NO_OPEN_ASSIGNMENT"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrInvalidArgument, "INVALID_ARGUMENT"},
}

// Kind returns the stable classification code of err.
// Errors that wrap none of the sentinels are "INTERNAL"; nil is "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "INTERNAL"
}

// Retryable reports whether err reflects a stale view of the asset that
// the caller may retry after re-reading state.
func Retryable(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrAlreadyAssigned)
}
