package transfers

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrorClass buckets a transfer completion error for the retry policy.
// Classification leans on errno identity where the transport preserves it
// and falls back to error text, since usbdevfs status codes arrive through
// several wrappers.
type ErrorClass int

const (
	ErrorClassNone ErrorClass = iota

	// ErrorClassCancelled marks a reaped cancellation. Expected during
	// shutdown, never a failure.
	ErrorClassCancelled

	// ErrorClassTimeout marks a transfer that expired without data.
	ErrorClassTimeout

	// ErrorClassPipe marks a stalled or otherwise broken endpoint.
	ErrorClassPipe

	// ErrorClassBusy marks resource exhaustion, usually the usbfs memory
	// cap. Retried with a smaller request.
	ErrorClassBusy

	// ErrorClassFatal is everything else and ends the pump run.
	ErrorClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassNone:
		return "none"
	case ErrorClassCancelled:
		return "cancelled"
	case ErrorClassTimeout:
		return "timeout"
	case ErrorClassPipe:
		return "pipe"
	case ErrorClassBusy:
		return "busy"
	}
	return "fatal"
}

// retryBudget is the bounded resubmit count per class before the error is
// treated as fatal.
func (c ErrorClass) retryBudget() int {
	switch c {
	case ErrorClassTimeout:
		return 5
	case ErrorClassPipe:
		return 3
	case ErrorClassBusy:
		return 10
	}
	return 0
}

// Classify maps a completion error onto its retry class. The kernel reports
// a cancelled URB as ECONNRESET, a stall as EPIPE, and usbfs buffer
// exhaustion as ENOMEM or EBUSY.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	text := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, unix.ECONNRESET) || strings.Contains(text, "cancel"):
		return ErrorClassCancelled
	case errors.Is(err, unix.ETIMEDOUT) || strings.Contains(text, "timed out") || strings.Contains(text, "timeout"):
		return ErrorClassTimeout
	case errors.Is(err, unix.EPIPE) || strings.Contains(text, "pipe") || strings.Contains(text, "stall") || strings.Contains(text, "endpoint"):
		return ErrorClassPipe
	case errors.Is(err, unix.EBUSY) || errors.Is(err, unix.ENOMEM) || strings.Contains(text, "busy") || strings.Contains(text, "resource"):
		return ErrorClassBusy
	}
	return ErrorClassFatal
}
