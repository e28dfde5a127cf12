package senso4s

import (
	"encoding/binary"
	"fmt"
)

const (
	advMinLength = 12

	modelBasicMask    = 0xF0
	modelBasicPattern = 0x80
	modelPlusMask     = 0x8F
	modelPlusPattern  = 0x03

	warningMovementBit    = 0x40
	warningInclinationBit = 0x20
	warningTemperatureBit = 0x10

	predictionUnset      = 0xFFFF
	predictionResolution = 15 // minutes per prediction unit
)

// massReading is the decoded form of the overloaded mass / status byte:
// either a status sentinel, a literal percentage (which implies StatusOK),
// or an out-of-range raw value carrying neither
type massReading struct {
	status     Status
	percent    int
	hasPercent bool
}

func classifyMassByte(b byte) massReading {
	switch b {
	case 0xFE:
		return massReading{status: StatusBatteryEmpty}
	case 0xFC:
		return massReading{status: StatusErrorStarting}
	case 0xFF:
		return massReading{status: StatusNotConfigured}
	}
	if b > 100 {
		return massReading{}
	}
	return massReading{status: StatusOK, percent: int(b), hasPercent: true}
}

// Matches reports whether an advertisement belongs to a supported Senso4s
// device, for use as a discovery filter
func Matches(adv Advertisement) bool {
	data, ok := manufacturerPayload(adv)
	if !ok || len(data) < 1 {
		return false
	}
	return classifyModel(data[0]) != ModelUnsupported
}

func manufacturerPayload(adv Advertisement) ([]byte, bool) {
	if data, ok := adv.ManufacturerData[senso4sVendorID]; ok {
		return data, true
	}

	// Some firmware revisions rebrand the payload under the radio module
	// vendor instead of the Senso4s company ID
	if data, ok := adv.ManufacturerData[nordicVendorID]; ok {
		return data, true
	}
	return nil, false
}

func classifyModel(b byte) Model {
	if b&modelBasicMask == modelBasicPattern {
		return ModelBasic
	}
	if b&modelPlusMask == modelPlusPattern {
		return ModelPlus
	}
	return ModelUnsupported
}

// DecodeAdvertisement turns one advertisement event into a fresh Snapshot
// carrying model classification, status, mass percentage, prediction,
// battery level and (for the Plus model) the three warning flags. It
// performs no I/O and is fully deterministic
func (s *Scale) DecodeAdvertisement(adv Advertisement) *Snapshot {
	snap := newSnapshot(adv.Address, adv.Name)

	// The RSSI belongs to the advertisement envelope and is recorded even
	// on early failure returns
	snap.set(FieldRSSI, IntValue(int64(adv.RSSI)))

	data, ok := manufacturerPayload(adv)
	if !ok {
		snap.Error = ErrUnrecognizedVendor.Error()
		s.logger.Debugf("advertisement from %s carries no Senso4s manufacturer data", adv.Address)
		return snap
	}

	if len(data) < advMinLength {
		snap.Error = fmt.Sprintf("%s: %s", ErrPayloadTooShort, adv.Address)
		s.logger.Errorf("advertisement payload from %s too short (%d bytes)", adv.Address, len(data))
		return snap
	}

	snap.set(FieldBattery, IntValue(int64(data[4])))

	reading := classifyMassByte(data[1])
	status := reading.status
	if status == "" {

		// Out-of-range raw value: the byte is no sentinel, so the status
		// determination stands at OK and only the percentage is dropped
		status = StatusOK
		s.logger.Debugf("mass percentage out of range: 0x%02X", data[1])
	}
	snap.set(FieldStatus, StringValue(string(status)))

	snap.Model = classifyModel(data[0])
	switch snap.Model {
	case ModelPlus:
		snap.set(FieldWarningMovement, BoolValue(data[0]&warningMovementBit > 0))
		snap.set(FieldWarningInclination, BoolValue(data[0]&warningInclinationBit > 0))
		snap.set(FieldWarningTemperature, BoolValue(data[0]&warningTemperatureBit > 0))
	case ModelUnsupported:

		// Unknown bit pattern: keep whatever partial information the
		// payload carries, callers filter on Matches() during discovery
		s.logger.Warnf("unknown model bit pattern 0x%02X from %s", data[0], adv.Address)
	}

	if reading.hasPercent {
		snap.set(FieldMassPercent, IntValue(int64(reading.percent)))
	} else {
		snap.set(FieldMassPercent, NullValue())
	}

	if prediction := binary.LittleEndian.Uint16(data[2:4]); prediction == predictionUnset {
		snap.set(FieldPrediction, NullValue())
	} else {
		snap.set(FieldPrediction, IntValue(int64(prediction)*predictionResolution))
	}

	return snap
}
