package loan

import "errors"

// Rejection kinds. Engine errors wrap one of these with a readable reason,
// so callers match with errors.Is and show err.Error().
var (
	ErrNotFound       = errors.New("loan not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidState   = errors.New("invalid state")
	ErrValueMismatch  = errors.New("value mismatch")
	ErrNotDue         = errors.New("loan not due")
	ErrTransferFailed = errors.New("transfer failed")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidState, "invalid_state"},
	{ErrValueMismatch, "value_mismatch"},
	{ErrNotDue, "not_due"},
	{ErrTransferFailed, "transfer_failed"},
}

// Kind returns the stable code for err's rejection kind, or "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}
