package events

import "fmt"

// DeliveryError describes a failed delivery of an envelope to a callback url.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cannot deliver to %v: unexpected statusCode %v: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("cannot deliver to %v: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
