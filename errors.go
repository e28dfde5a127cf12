package senso4s

import "errors"

var (

	// ErrUnrecognizedVendor is returned when an advertisement carries no
	// manufacturer data under either known vendor ID
	ErrUnrecognizedVendor = errors.New("not a Senso4s device")

	// ErrPayloadTooShort is returned when the manufacturer payload is
	// shorter than the fixed advertisement layout
	ErrPayloadTooShort = errors.New("advertisement payload too short")

	// ErrConnectionUnavailable is returned when no GATT session to the
	// device could be acquired
	ErrConnectionUnavailable = errors.New("BLE client unavailable")

	// ErrCharacteristicRead is returned when reading a single
	// characteristic fails (isolated to its own sensor fields)
	ErrCharacteristicRead = errors.New("characteristic read failed")

	// ErrNotifySubscribe is returned when enabling notifications on a
	// characteristic fails (isolated, history simply reports no data)
	ErrNotifySubscribe = errors.New("notification subscribe failed")

	// ErrMalformedHistory is returned when a history notification length
	// is not a multiple of the 4-byte entry size
	ErrMalformedHistory = errors.New("history stream length not a multiple of 4")
)
