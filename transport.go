package senso4s

import "context"

// Advertisement denotes one BLE discovery / update event as delivered by an
// advertisement source: the manufacturer data mapping keyed by company ID,
// the optional local name and the signal strength of the observation
type Advertisement struct {
	Address          string
	Name             string
	RSSI             int16
	ManufacturerData map[uint16][]byte
}

// Session denotes a live bidirectional GATT connection to a device.
// Characteristics are addressed by their canonical UUID string
type Session interface {

	// Read reads the current value of a characteristic
	Read(ctx context.Context, characteristic string) ([]byte, error)

	// Write writes a value to a characteristic
	Write(ctx context.Context, characteristic string, data []byte) error

	// Subscribe enables notifications on a characteristic, invoking the
	// handler for every received value. The returned function disables
	// the subscription again
	Subscribe(characteristic string, handler func(data []byte)) (unsubscribe func() error, err error)

	// Disconnect releases the connection
	Disconnect() error
}

// Connector provides GATT sessions for device addresses. Implementations
// wrap an actual BLE central (see gatt.go and the tinyble package)
type Connector interface {
	Connect(ctx context.Context, address string) (Session, error)
}
