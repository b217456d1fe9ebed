package aranet

import (
	"github.com/pkg/errors"
)

// Kinds of read cycle failures. A failed Reader.Read returns a *StepError
// whose Kind is one of these, so errors.Is(err, ErrDeviceNotFound) works.
var (
	ErrNoAdapter              = errors.New("no bluetooth adapters found")
	ErrDeviceNotFound         = errors.New("aranet4 not found")
	ErrConnectFailed          = errors.New("couldn't connect to device")
	ErrCharacteristicNotFound = errors.New("current readings characteristic not found")
	ErrMalformedPayload       = errors.New("malformed current readings payload")
	ErrTransport              = errors.New("bluetooth transport error")
)

var kindLabels = map[error]string{
	ErrNoAdapter:              "no_adapter",
	ErrDeviceNotFound:         "device_not_found",
	ErrConnectFailed:          "connect_failed",
	ErrCharacteristicNotFound: "characteristic_not_found",
	ErrMalformedPayload:       "malformed_payload",
	ErrTransport:              "transport_error",
}

// StepError is a failure of one step of the read protocol.
type StepError struct {
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *StepError) Is(target error) bool {
	return target == e.Kind
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// KindOf returns a short stable label for err, suitable for log fields and
// metric labels. Errors outside the read taxonomy are "other".
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		if label, ok := kindLabels[stepErr.Kind]; ok {
			return label
		}
	}
	return "other"
}
