// Package tinyble adapts a tinygo.org/x/bluetooth central to the senso4s
// advertisement source and Connector interfaces, providing a cross-platform
// alternative to the HCI-based GATT central of the root package.
package tinyble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/blesensor/senso4s"
)

const (
	defaultScanTimeout = 10 * time.Second

	readBufferSize = 256
)

// Central wraps a bluetooth adapter, acting both as advertisement source
// and as Connector for full acquisitions
type Central struct {
	adapter *bluetooth.Adapter
	logger  senso4s.Logger

	enableOnce sync.Once
	enableErr  error

	mu        sync.Mutex
	addresses map[string]bluetooth.Address
	scanning  bool
}

// New instantiates a new central on the given adapter (the default adapter
// if nil) without enabling it yet
func New(adapter *bluetooth.Adapter, logger senso4s.Logger) *Central {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if logger == nil {
		logger = &senso4s.NullLogger{}
	}

	return &Central{
		adapter:   adapter,
		logger:    logger,
		addresses: make(map[string]bluetooth.Address),
	}
}

func (c *Central) enable() error {
	c.enableOnce.Do(func() {
		c.enableErr = c.adapter.Enable()
	})
	return c.enableErr
}

// Watch streams advertisement events until the context expires
func (c *Central) Watch(ctx context.Context, onAdvertisement func(senso4s.Advertisement)) error {
	if err := c.enable(); err != nil {
		return fmt.Errorf("failed to enable adapter: %w", err)
	}

	c.setScanning(true)
	defer c.setScanning(false)

	go func() {
		<-ctx.Done()
		if err := c.adapter.StopScan(); err != nil {
			c.logger.Debugf("failed to stop scanning: %s", err)
		}
	}()

	// Scan blocks until StopScan or error
	err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		c.remember(result.Address)
		onAdvertisement(toAdvertisement(result))
	})

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Connect fulfils the senso4s.Connector interface
func (c *Central) Connect(ctx context.Context, address string) (senso4s.Session, error) {
	if err := c.enable(); err != nil {
		return nil, fmt.Errorf("failed to enable adapter: %w", err)
	}

	addr, err := c.resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	dev, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", address, err)
	}

	session, err := newSession(dev)
	if err != nil {
		if disconnectErr := dev.Disconnect(); disconnectErr != nil {
			c.logger.Debugf("failed to disconnect %s: %s", address, disconnectErr)
		}
		return nil, err
	}
	return session, nil
}

// resolve maps a textual address to a bluetooth.Address, scanning for the
// device unless it was already seen while watching
func (c *Central) resolve(ctx context.Context, address string) (bluetooth.Address, error) {
	c.mu.Lock()
	addr, ok := c.addresses[strings.ToLower(address)]
	scanning := c.scanning
	c.mu.Unlock()

	if ok {
		return addr, nil
	}
	if scanning {
		return bluetooth.Address{}, fmt.Errorf("device %s not seen while scanning", address)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultScanTimeout)
	defer cancel()

	var (
		found   bluetooth.Address
		errChan = make(chan error, 1)
	)
	go func() {
		errChan <- c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !strings.EqualFold(result.Address.String(), address) {
				return
			}
			found = result.Address
			c.remember(result.Address)
			if err := adapter.StopScan(); err != nil {
				c.logger.Debugf("failed to stop scanning: %s", err)
			}
		})
	}()

	select {
	case <-ctx.Done():
		if err := c.adapter.StopScan(); err != nil {
			c.logger.Debugf("failed to stop scanning: %s", err)
		}
		return bluetooth.Address{}, fmt.Errorf("device %s not found: %w", address, ctx.Err())
	case err := <-errChan:
		if err != nil {
			return bluetooth.Address{}, fmt.Errorf("failed to scan for %s: %w", address, err)
		}
		return found, nil
	}
}

func (c *Central) remember(addr bluetooth.Address) {
	c.mu.Lock()
	c.addresses[strings.ToLower(addr.String())] = addr
	c.mu.Unlock()
}

func (c *Central) setScanning(v bool) {
	c.mu.Lock()
	c.scanning = v
	c.mu.Unlock()
}

func toAdvertisement(result bluetooth.ScanResult) senso4s.Advertisement {
	var manufacturerData map[uint16][]byte
	for _, element := range result.ManufacturerData() {
		if manufacturerData == nil {
			manufacturerData = make(map[uint16][]byte)
		}
		manufacturerData[element.CompanyID] = append([]byte(nil), element.Data...)
	}

	return senso4s.Advertisement{
		Address:          result.Address.String(),
		Name:             result.LocalName(),
		RSSI:             result.RSSI,
		ManufacturerData: manufacturerData,
	}
}

////////////////////////////////////////////////////////////////////////////////

// session wraps a connected device and its discovered characteristics,
// keyed by canonical UUID string
type session struct {
	dev   bluetooth.Device
	chars map[string]bluetooth.DeviceCharacteristic

	mu  sync.Mutex
	buf []byte
}

func newSession(dev bluetooth.Device) (*session, error) {

	// The device information service is optional, the scale service is not
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	s := &session{
		dev:   dev,
		chars: make(map[string]bluetooth.DeviceCharacteristic),
		buf:   make([]byte, readBufferSize),
	}
	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics: %w", err)
		}
		for _, char := range chars {
			s.chars[strings.ToLower(char.UUID().String())] = char
		}
	}

	return s, nil
}

func (s *session) characteristic(uuid string) (bluetooth.DeviceCharacteristic, error) {
	char, ok := s.chars[strings.ToLower(uuid)]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not present", uuid)
	}
	return char, nil
}

// Read fulfils the senso4s.Session interface
func (s *session) Read(ctx context.Context, characteristic string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	char, err := s.characteristic(characteristic)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := char.Read(s.buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), s.buf[:n]...), nil
}

// Write fulfils the senso4s.Session interface
func (s *session) Write(ctx context.Context, characteristic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	char, err := s.characteristic(characteristic)
	if err != nil {
		return err
	}

	_, err = char.WriteWithoutResponse(data)
	return err
}

// Subscribe fulfils the senso4s.Session interface
func (s *session) Subscribe(characteristic string, handler func(data []byte)) (func() error, error) {
	char, err := s.characteristic(characteristic)
	if err != nil {
		return nil, err
	}

	if err := char.EnableNotifications(func(data []byte) {
		handler(append([]byte(nil), data...))
	}); err != nil {
		return nil, err
	}

	return func() error {
		return char.EnableNotifications(nil)
	}, nil
}

// Disconnect fulfils the senso4s.Session interface
func (s *session) Disconnect() error {
	return s.dev.Disconnect()
}
