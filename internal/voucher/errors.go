package voucher

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is a 401 from the voucher endpoint: the API key was refused.
	ErrUnauthorized             = errors.New("unauthorized")
	ErrVoucherRejected          = errors.New("voucher rejected")
	ErrAttachmentUploadRejected = errors.New("attachment upload rejected")
	ErrUnexpectedResponse       = errors.New("unexpected response")
	ErrTimeout                  = errors.New("remote call timed out")
	ErrTransport                = errors.New("transport failure")
)

// Step names the remote call that failed.
type Step string

const (
	StepVoucher Step = "voucher"
	StepFile    Step = "file"
)

// RejectedError is a non-success HTTP status from the voucher service.
type RejectedError struct {
	Step    Step
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected with status %d", e.Step, e.Status)
	}
	return fmt.Sprintf("%s rejected with status %d: %s", e.Step, e.Status, e.Message)
}

// Is lets errors.Is match the step-specific sentinel.
func (e *RejectedError) Is(target error) bool {
	switch target {
	case ErrVoucherRejected:
		return e.Step == StepVoucher
	case ErrAttachmentUploadRejected:
		return e.Step == StepFile
	}
	return false
}
