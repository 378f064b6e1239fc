package domain

import "fmt"

// AdapterTransportError wraps a transport fault (timeout, connection failure,
// undecodable response) raised by a carrier adapter.
type AdapterTransportError struct {
	CarrierCode string
	Operation   APICallType
	Err         error
}

func (e *AdapterTransportError) Error() string {
	return fmt.Sprintf("carrier %s %s failed: %v", e.CarrierCode, e.Operation, e.Err)
}

func (e *AdapterTransportError) Unwrap() error {
	return e.Err
}
