package stream

import "fmt"

// Fault represents a domain-specific error with a user-renderable message
type Fault struct {
	Code    string
	Message string
	Cause   error
}

func (e *Fault) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Fault) Unwrap() error {
	return e.Cause
}

// Fault codes
const (
	FaultCodeEnumeration    = "DEVICE_ENUMERATION"
	FaultCodeAcquisition    = "ACQUISITION"
	FaultCodeRecording      = "RECORDING"
	FaultCodeCapture        = "CAPTURE"
	FaultCodeSampling       = "SAMPLING"
	FaultCodeDeviceNotFound = "DEVICE_NOT_FOUND"
	FaultCodeRecorderBusy   = "RECORDER_BUSY"
)

// NewFault creates a new fault
func NewFault(code, message string, cause error) *Fault {
	return &Fault{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
