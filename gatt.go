package senso4s

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/fako1024/gatt"
)

var defaultBTClientOptions = []gatt.Option{
	gatt.LnxMaxConnections(1),
	gatt.LnxDeviceID(-1, true),
}

// GATTCentral wraps a Linux HCI GATT device, acting both as advertisement
// source and as Connector for full acquisitions
type GATTCentral struct {
	dev    gatt.Device
	logger Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu          sync.Mutex
	peripherals map[string]gatt.Peripheral
	pending     map[string]chan *gattSession
	advHandler  func(Advertisement)
}

// NewGATTCentral instantiates a new GATT central and initializes the
// underlying HCI device
func NewGATTCentral(logger Logger) (*GATTCentral, error) {
	if logger == nil {
		logger = &NullLogger{}
	}

	dev, err := gatt.NewDevice(defaultBTClientOptions...)
	if err != nil {
		return nil, err
	}

	c := &GATTCentral{
		dev:         dev,
		logger:      logger,
		ready:       make(chan struct{}),
		peripherals: make(map[string]gatt.Peripheral),
		pending:     make(map[string]chan *gattSession),
	}

	// Register handlers
	c.dev.Handle(
		gatt.AddPeripheralDiscovered(c.onPeriphDiscovered),
		gatt.AddPeripheralConnected(c.onPeriphConnected),
		gatt.AddPeripheralDisconnected(c.onPeriphDisconnected),
	)

	return c, c.dev.Init(c.onStateChanged)
}

// Scan streams advertisement events until the context expires
func (c *GATTCentral) Scan(ctx context.Context, onAdvertisement func(Advertisement)) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.advHandler = onAdvertisement
	c.mu.Unlock()

	if err := c.dev.Scan([]gatt.UUID{}, true); err != nil {
		return fmt.Errorf("failed to enable scanning: %w", err)
	}

	<-ctx.Done()

	c.mu.Lock()
	c.advHandler = nil
	c.mu.Unlock()

	if err := c.dev.StopScanning(); err != nil {
		c.logger.Warnf("failed to stop scanning: %s", err)
	}
	return nil
}

// Connect fulfils the Connector interface, returning a session to a device
// previously seen while scanning
func (c *GATTCentral) Connect(ctx context.Context, address string) (Session, error) {
	c.mu.Lock()
	p, ok := c.peripherals[strings.ToLower(address)]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("peripheral %s not discovered yet", address)
	}
	sessionChan := make(chan *gattSession, 1)
	c.pending[strings.ToLower(address)] = sessionChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, strings.ToLower(address))
		c.mu.Unlock()
	}()

	if err := c.dev.Connect(p); err != nil {
		return nil, err
	}

	select {
	case session := <-sessionChan:
		if session == nil {
			return nil, fmt.Errorf("failed to set up session to %s", address)
		}
		return session, nil
	case <-ctx.Done():
		c.dev.CancelConnection(p)
		return nil, ctx.Err()
	}
}

func (c *GATTCentral) onStateChanged(d gatt.Device, s gatt.State) {
	switch s {
	case gatt.StatePoweredOn:
		c.logger.Debugf("GATT device powered on")
		c.readyOnce.Do(func() { close(c.ready) })
	case gatt.StatePoweredOff:
		c.logger.Warnf("GATT device powered off")
	}
}

func (c *GATTCentral) onPeriphDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	c.mu.Lock()
	c.peripherals[strings.ToLower(p.ID())] = p
	handler := c.advHandler
	c.mu.Unlock()

	if handler == nil {
		return
	}

	handler(Advertisement{
		Address:          p.ID(),
		Name:             a.LocalName,
		RSSI:             int16(rssi),
		ManufacturerData: manufacturerDataMap(a.ManufacturerData),
	})
}

func (c *GATTCentral) onPeriphConnected(p gatt.Peripheral, connErr error) {
	c.mu.Lock()
	sessionChan, ok := c.pending[strings.ToLower(p.ID())]
	c.mu.Unlock()

	if !ok {
		c.logger.Debugf("ignoring connection to unrequested peripheral `%s/%s`", p.Name(), p.ID())
		p.Device().CancelConnection(p)
		return
	}

	if connErr != nil {
		c.logger.Errorf("failed to connect peripheral `%s/%s`: %s", p.Name(), p.ID(), connErr)
		sessionChan <- nil
		return
	}

	session, err := newGATTSession(p)
	if err != nil {
		c.logger.Errorf("failed to set up session to `%s/%s`: %s", p.Name(), p.ID(), err)
		p.Device().CancelConnection(p)
		sessionChan <- nil
		return
	}

	c.logger.Debugf("connected peripheral `%s/%s`", p.Name(), p.ID())
	sessionChan <- session
}

func (c *GATTCentral) onPeriphDisconnected(p gatt.Peripheral, err error) {
	c.logger.Debugf("disconnected peripheral `%s/%s`", p.Name(), p.ID())
}

////////////////////////////////////////////////////////////////////////////////

// gattSession wraps a connected peripheral and its discovered
// characteristics, keyed by normalized UUID
type gattSession struct {
	p     gatt.Peripheral
	chars map[string]*gatt.Characteristic
}

func newGATTSession(p gatt.Peripheral) (*gattSession, error) {

	// Discover services
	ss, err := p.DiscoverServices([]gatt.UUID{
		gatt.MustParseUUID(normalizeUUID(scaleService)),
		gatt.MustParseUUID(normalizeUUID(deviceInfoService)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	session := &gattSession{
		p:     p,
		chars: make(map[string]*gatt.Characteristic),
	}
	for _, service := range ss {

		// Discover all characteristics of the service
		cs, err := p.DiscoverCharacteristics(nil, service)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics: %w", err)
		}
		for _, char := range cs {

			// Discover descriptors (required to address the client
			// configuration descriptor for notifications)
			if _, err := p.DiscoverDescriptors(nil, char); err != nil {
				return nil, fmt.Errorf("failed to discover descriptors: %w", err)
			}
			session.chars[normalizeUUID(char.UUID().String())] = char
		}
	}

	return session, nil
}

func (s *gattSession) characteristic(uuid string) (*gatt.Characteristic, error) {
	char, ok := s.chars[normalizeUUID(uuid)]
	if !ok {
		return nil, fmt.Errorf("%w: characteristic %s not present", ErrCharacteristicRead, uuid)
	}
	return char, nil
}

// Read fulfils the Session interface
func (s *gattSession) Read(ctx context.Context, characteristic string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	char, err := s.characteristic(characteristic)
	if err != nil {
		return nil, err
	}
	return s.p.ReadCharacteristic(char)
}

// Write fulfils the Session interface
func (s *gattSession) Write(ctx context.Context, characteristic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	char, err := s.characteristic(characteristic)
	if err != nil {
		return err
	}
	return s.p.WriteCharacteristic(char, data, false)
}

// Subscribe fulfils the Session interface
func (s *gattSession) Subscribe(characteristic string, handler func(data []byte)) (func() error, error) {
	char, err := s.characteristic(characteristic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotifySubscribe, err)
	}

	if err := s.p.SetNotifyValue(char, func(_ *gatt.Characteristic, data []byte, err error) {
		if err != nil {
			return
		}
		handler(data)
	}); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotifySubscribe, err)
	}

	return func() error {
		return s.p.SetNotifyValue(char, nil)
	}, nil
}

// Disconnect fulfils the Session interface
func (s *gattSession) Disconnect() error {
	s.p.Device().CancelConnection(s.p)
	return nil
}

////////////////////////////////////////////////////////////////////////////////

func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// manufacturerDataMap splits raw advertisement manufacturer data into its
// company ID (little-endian prefix) and payload
func manufacturerDataMap(data []byte) map[uint16][]byte {
	if len(data) < 2 {
		return nil
	}
	return map[uint16][]byte{
		binary.LittleEndian.Uint16(data[0:2]): data[2:],
	}
}
