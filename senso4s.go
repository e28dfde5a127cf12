package senso4s

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultManufacturer = "Senso4s"

	// Vendor IDs the manufacturer data may be keyed by: the Senso4s
	// company ID, or the Nordic Semiconductor ID of the radio module
	senso4sVendorID = 0x09CC
	nordicVendorID  = 0x0059

	scaleService = "00007081-a20b-4d4d-a4de-7f071dbbc1d8"

	massCharacteristic      = "00007082-a20b-4d4d-a4de-7f071dbbc1d8"
	paramsCharacteristic    = "00007083-a20b-4d4d-a4de-7f071dbbc1d8"
	historyCharacteristic   = "00007085-a20b-4d4d-a4de-7f071dbbc1d8"
	setupTimeCharacteristic = "00007087-a20b-4d4d-a4de-7f071dbbc1d8"

	deviceInfoService         = "0000180a-0000-1000-8000-00805f9b34fb"
	modelNumberCharacteristic = "00002a24-0000-1000-8000-00805f9b34fb"
	hardwareRevCharacteristic = "00002a27-0000-1000-8000-00805f9b34fb"
	firmwareRevCharacteristic = "00002a26-0000-1000-8000-00805f9b34fb"

	defaultHistoryWindow = time.Second

	// historyIntervalResolution is the duration of one history interval
	// offset unit
	historyIntervalResolution = 15 * time.Minute
)

// historyTrigger is the value written to the history characteristic to
// request the dump (uint16 zero)
var historyTrigger = []byte{0x00, 0x00}

// Scale decodes telemetry from a Senso4s gas cylinder scale: stateless
// advertisement decoding plus the full characteristic acquisition sequence
// over a live GATT session
type Scale struct {
	connector Connector

	timeZone      *time.Location
	historyWindow time.Duration
	historyPolicy HistoryPolicy
	deviceInfo    bool

	logger Logger
}

// New instantiates a new Scale, executing functional options, if any
func New(options ...func(*Scale)) *Scale {

	// Initialize a new instance with defaults, see options.go for the
	// available overrides
	s := &Scale{
		timeZone:      time.Local,
		historyWindow: defaultHistoryWindow,
		deviceInfo:    true,
		logger:        &NullLogger{},
	}

	// Execute functional options (if any)
	for _, option := range options {
		option(s)
	}

	return s
}

// acquisition holds the per-invocation state of one full read: the live
// session, the in-progress snapshot and the history accumulator. It is
// discarded (and the session closed) before Acquire returns
type acquisition struct {
	snap    *Snapshot
	session Session
	history historyAccumulator
}

// Acquire runs one full acquisition cycle: advertisement decode, connect,
// concurrent characteristic reads and the history notification handshake,
// derived field computation and disconnect. Per-characteristic failures are
// isolated to their own sensor fields; only advertisement-level failures
// and connection acquisition failures are fatal. The returned snapshot
// always carries whatever fields were gathered before a fault
func (s *Scale) Acquire(ctx context.Context, adv Advertisement) *Snapshot {
	snap := s.DecodeAdvertisement(adv)
	if snap.Failed() {

		// A non-matching or malformed device is not worth the cost of a
		// BLE connection
		return snap
	}

	session, err := s.connect(ctx, adv.Address)
	if err != nil {
		s.logger.Errorf("failed to connect device %s: %s", adv.Address, err)
		snap.Error = err.Error()
		return snap
	}

	// The session is released on every exit path, cancellation included
	defer func() {
		if err := session.Disconnect(); err != nil {
			s.logger.Warnf("failed to disconnect device %s: %s", adv.Address, err)
		}
	}()

	acq := &acquisition{
		snap:    snap,
		session: session,
		history: historyAccumulator{policy: s.historyPolicy},
	}

	reads := []func(context.Context, *acquisition){
		s.readMass,
		s.readParameters,
		s.readHistory,
		s.readSetupTime,
	}
	if s.deviceInfo {
		reads = append(reads, s.readDeviceInfo)
	}

	var wg sync.WaitGroup
	for _, read := range reads {
		wg.Add(1)
		go func(read func(context.Context, *acquisition)) {
			defer wg.Done()
			read(ctx, acq)
		}(read)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		snap.Error = fmt.Sprintf("acquisition aborted: %s", err)
		return snap
	}

	// The last measurement time is the setup time plus the latest history
	// offset; omitted unless both are available
	if setupTime, ok := snap.Value(FieldSetupTime); ok {
		if t, isTime := setupTime.Time(); isTime {
			if latest, ok := acq.history.latestEntry(); ok {
				offset := time.Duration(latest.IntervalOffset+1) * historyIntervalResolution
				snap.set(FieldLastMeasurement, TimeValue(t.Add(offset)))
			}
		}
	}

	return snap
}

func (s *Scale) connect(ctx context.Context, address string) (Session, error) {
	if s.connector == nil {
		return nil, fmt.Errorf("%w: no connector configured", ErrConnectionUnavailable)
	}

	session, err := s.connector.Connect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionUnavailable, err)
	}
	if session == nil {
		return nil, ErrConnectionUnavailable
	}
	return session, nil
}

func (s *Scale) readMass(ctx context.Context, acq *acquisition) {

	// The mass characteristic requires notifications to be enabled before
	// the direct read succeeds
	unsubscribe, err := acq.session.Subscribe(massCharacteristic, func(data []byte) {
		s.logger.Debugf("mass notification: %x", data)
	})
	if err != nil {
		s.logger.Warnf("failed to subscribe to mass characteristic: %s", err)
		return
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			s.logger.Debugf("failed to unsubscribe from mass characteristic: %s", err)
		}
	}()

	raw, err := acq.session.Read(ctx, massCharacteristic)
	if err != nil {
		s.logger.Warnf("failed to read mass characteristic: %s", err)
		return
	}

	reading, err := decodeMass(raw)
	if err != nil {
		s.logger.Warnf("failed to decode mass characteristic: %s", err)
		return
	}

	if reading.status != "" {
		acq.snap.set(FieldStatus, StringValue(string(reading.status)))
	}
	if reading.hasPercent {
		acq.snap.set(FieldMassPercent, IntValue(int64(reading.percent)))
	} else {
		acq.snap.set(FieldMassPercent, NullValue())
	}
}

func (s *Scale) readParameters(ctx context.Context, acq *acquisition) {
	raw, err := acq.session.Read(ctx, paramsCharacteristic)
	if err != nil {
		s.logger.Warnf("failed to read parameters characteristic: %s", err)
		return
	}

	weightKg, capacityKg, err := decodeParameters(raw)
	if err != nil {
		s.logger.Warnf("failed to decode parameters characteristic: %s", err)
		return
	}

	acq.snap.set(FieldCylinderWeight, FloatValue(weightKg))
	acq.snap.set(FieldCylinderCapacity, FloatValue(capacityKg))
}

func (s *Scale) readHistory(ctx context.Context, acq *acquisition) {

	// History is delivered as a notification burst after writing the
	// trigger value; there is no completion signal beyond the collection
	// window elapsing
	unsubscribe, err := acq.session.Subscribe(historyCharacteristic, func(data []byte) {
		s.logger.Debugf("history notification: %x", data)
		if err := acq.history.absorb(data); err != nil {
			s.logger.Warnf("malformed history notification: %s", err)
		}
	})
	if err != nil {
		s.logger.Warnf("failed to subscribe to history characteristic: %s", err)
		return
	}
	defer func() {
		if err := unsubscribe(); err != nil {
			s.logger.Debugf("failed to unsubscribe from history characteristic: %s", err)
		}
	}()

	if err := acq.session.Write(ctx, historyCharacteristic, historyTrigger); err != nil {
		s.logger.Warnf("failed to write history trigger: %s", err)
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.historyWindow):
	}

	// The burst is chronological oldest to newest, so the last entry seen
	// is the current reading
	if latest, ok := acq.history.latestEntry(); ok {
		acq.snap.set(FieldMassKg, FloatValue(float64(latest.MassDag)/centiKgPerKg))
	} else {
		s.logger.Debugf("no measurement history received")
		acq.snap.set(FieldMassKg, NullValue())
	}
}

func (s *Scale) readSetupTime(ctx context.Context, acq *acquisition) {
	raw, err := acq.session.Read(ctx, setupTimeCharacteristic)
	if err != nil {
		s.logger.Warnf("failed to read setup time characteristic: %s", err)
		return
	}

	setupTime, ok, err := decodeSetupTime(raw, s.timeZone)
	if err != nil {
		s.logger.Warnf("failed to decode setup time characteristic: %s", err)
		return
	}
	if !ok {
		acq.snap.set(FieldSetupTime, NullValue())
		return
	}

	acq.snap.set(FieldSetupTime, TimeValue(setupTime))
}

func (s *Scale) readDeviceInfo(ctx context.Context, acq *acquisition) {
	if raw, err := acq.session.Read(ctx, modelNumberCharacteristic); err == nil {
		acq.snap.ModelNumber = strings.TrimRight(string(raw), "\x00")
	} else {
		s.logger.Debugf("failed to read model number characteristic: %s", err)
	}

	if raw, err := acq.session.Read(ctx, hardwareRevCharacteristic); err == nil {
		acq.snap.HWVersion = strings.TrimRight(string(raw), "\x00")
	} else {
		s.logger.Debugf("failed to read hardware revision characteristic: %s", err)
	}

	if raw, err := acq.session.Read(ctx, firmwareRevCharacteristic); err == nil {
		acq.snap.SWVersion = strings.TrimRight(string(raw), "\x00")
	} else {
		s.logger.Debugf("failed to read firmware revision characteristic: %s", err)
	}
}
