package senso4s

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	paramsLength    = 5
	setupTimeLength = 7

	historyEntrySize = 4

	// Both cylinder parameters and history masses are reported in
	// hundredths of a kilogram
	centiKgPerKg = 100
)

// decodeMass decodes the 1-byte mass characteristic, carrying the same
// sentinel-vs-value overload as advertisement byte 1
func decodeMass(data []byte) (massReading, error) {
	if len(data) < 1 {
		return massReading{}, fmt.Errorf("invalid length of mass data (want 1, have %d)", len(data))
	}
	return classifyMassByte(data[0]), nil
}

// decodeParameters decodes the 5-byte parameters characteristic into empty
// cylinder weight and cylinder capacity, both in kilograms
func decodeParameters(data []byte) (weightKg, capacityKg float64, err error) {
	if len(data) != paramsLength {
		return 0, 0, fmt.Errorf("invalid length of parameters data (want %d, have %d)", paramsLength, len(data))
	}

	weightKg = float64(binary.LittleEndian.Uint16(data[0:2])) / centiKgPerKg
	capacityKg = float64(binary.LittleEndian.Uint16(data[2:4])) / centiKgPerKg
	return weightKg, capacityKg, nil
}

// decodeSetupTime decodes the 7-byte setup time characteristic. The device
// has no timezone awareness and reports the local wall time set during
// setup, so the zone to interpret it in is injected by the caller. A zero
// year marks the field as unset (ok == false)
func decodeSetupTime(data []byte, loc *time.Location) (t time.Time, ok bool, err error) {
	if len(data) != setupTimeLength {
		return time.Time{}, false, fmt.Errorf("invalid length of setup time data (want %d, have %d)", setupTimeLength, len(data))
	}

	year := int(binary.LittleEndian.Uint16(data[0:2]))
	if year == 0 {
		return time.Time{}, false, nil
	}

	t = time.Date(year, time.Month(data[2]), int(data[3]), int(data[4]), int(data[5]), 0, 0, loc)
	return t, true, nil
}

// HistoryEntry denotes one historical mass measurement: the mass in
// decagrams and its offset from the setup time in 15-minute intervals
type HistoryEntry struct {
	MassDag        uint16
	IntervalOffset uint16
}

// decodeHistoryChunk decodes one notification payload into its entries,
// oldest to newest. A length that is not a multiple of the entry size
// yields the valid prefix alongside ErrMalformedHistory, leaving the
// discard-or-keep decision to the caller's policy
func decodeHistoryChunk(data []byte) ([]HistoryEntry, error) {
	n := len(data) / historyEntrySize
	entries := make([]HistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, HistoryEntry{
			MassDag:        binary.LittleEndian.Uint16(data[i*historyEntrySize:]),
			IntervalOffset: binary.LittleEndian.Uint16(data[i*historyEntrySize+2:]),
		})
	}

	if len(data)%historyEntrySize != 0 {
		return entries, fmt.Errorf("%w (have %d bytes)", ErrMalformedHistory, len(data))
	}
	return entries, nil
}
