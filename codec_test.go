package senso4s

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMassByte(t *testing.T) {
	for _, testCase := range []struct {
		input      byte
		status     Status
		percent    int
		hasPercent bool
	}{
		{0x00, StatusOK, 0, true},
		{0x2D, StatusOK, 45, true},
		{0x64, StatusOK, 100, true},
		{0xFE, StatusBatteryEmpty, 0, false},
		{0xFC, StatusErrorStarting, 0, false},
		{0xFF, StatusNotConfigured, 0, false},
		{0xC8, "", 0, false},
	} {
		reading, err := decodeMass([]byte{testCase.input})
		if err != nil {
			t.Fatalf("0x%02X: unexpected error: %s", testCase.input, err)
		}
		if reading.status != testCase.status {
			t.Fatalf("0x%02X: want status %q, have %q", testCase.input, testCase.status, reading.status)
		}
		if reading.hasPercent != testCase.hasPercent || reading.percent != testCase.percent {
			t.Fatalf("0x%02X: want percent %d/%t, have %d/%t", testCase.input,
				testCase.percent, testCase.hasPercent, reading.percent, reading.hasPercent)
		}
	}

	if _, err := decodeMass(nil); err == nil {
		t.Fatalf("expected error on empty mass data")
	}
}

func TestDecodeParameters(t *testing.T) {

	// 500 cg empty weight, 1000 cg capacity
	weightKg, capacityKg, err := decodeParameters([]byte{0xF4, 0x01, 0xE8, 0x03, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if weightKg != 5.0 {
		t.Fatalf("want weight 5.0, have %f", weightKg)
	}
	if capacityKg != 10.0 {
		t.Fatalf("want capacity 10.0, have %f", capacityKg)
	}

	if _, _, err := decodeParameters([]byte{0xF4, 0x01}); err == nil {
		t.Fatalf("expected error on truncated parameters data")
	}
}

func TestDecodeSetupTime(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)

	// 2024-06-15 10:30
	setupTime, ok, err := decodeSetupTime([]byte{0xE8, 0x07, 0x06, 0x0F, 0x0A, 0x1E, 0x00}, loc)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Fatalf("expected a set setup time")
	}
	if want := time.Date(2024, time.June, 15, 10, 30, 0, 0, loc); !setupTime.Equal(want) {
		t.Fatalf("want %s, have %s", want, setupTime)
	}

	// A zero year marks the field as unset
	if _, ok, err := decodeSetupTime([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, loc); err != nil || ok {
		t.Fatalf("want unset setup time, have ok=%t / err=%v", ok, err)
	}

	if _, _, err := decodeSetupTime([]byte{0xE8, 0x07}, loc); err == nil {
		t.Fatalf("expected error on truncated setup time data")
	}
}

func TestDecodeHistoryChunk(t *testing.T) {
	entries, err := decodeHistoryChunk([]byte{
		0xF4, 0x01, 0x01, 0x00, // 500 dag @ offset 1
		0xE0, 0x01, 0x02, 0x00, // 480 dag @ offset 2
		0xC2, 0x01, 0x05, 0x00, // 450 dag @ offset 5
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, have %d", len(entries))
	}
	if entries[2].MassDag != 450 || entries[2].IntervalOffset != 5 {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}

	// Trailing bytes yield the valid prefix plus the malformed stream error
	entries, err = decodeHistoryChunk([]byte{0xF4, 0x01, 0x01, 0x00, 0xE0, 0x01})
	if !errors.Is(err, ErrMalformedHistory) {
		t.Fatalf("want ErrMalformedHistory, have %v", err)
	}
	if len(entries) != 1 || entries[0].MassDag != 500 {
		t.Fatalf("unexpected prefix entries: %+v", entries)
	}

	if entries, err = decodeHistoryChunk(nil); err != nil || len(entries) != 0 {
		t.Fatalf("empty chunk: want no entries / no error, have %d / %v", len(entries), err)
	}
}
