package itip

import "errors"

var (
	// ErrInvalidArgument is returned when a required input is missing
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownMethod is returned for methods outside the iTIP method set
	ErrUnknownMethod = errors.New("unknown method")
	// ErrUnknownItemType is returned for components other than VEVENT and VTODO
	ErrUnknownItemType = errors.New("unknown item type")
	// ErrEmptyItemList is returned when a message carries no items
	ErrEmptyItemList = errors.New("empty item list")
	// ErrInvalidResponseMethod is returned when the response method is not a legal answer
	ErrInvalidResponseMethod = errors.New("invalid response method")
	// ErrNotImplemented is returned for protocol branches the processor does not handle
	ErrNotImplemented = errors.New("not implemented")
	// ErrMissingExistingItem is returned when an update has no stored item to replace
	ErrMissingExistingItem = errors.New("item to update not found")
	// ErrUndefinedOperation is returned for an operation that is neither add, update nor delete
	ErrUndefinedOperation = errors.New("undefined operation")
	// ErrAssertionFailed signals a broken internal invariant
	ErrAssertionFailed = errors.New("assertion failed")
	// ErrTransportUnsupported is returned when a calendar's itip.transport property is not a Transport
	ErrTransportUnsupported = errors.New("calendar does not provide an itip transport")
)
