package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/blesensor/senso4s"
)

func testSnapshot(t *testing.T) *senso4s.Snapshot {
	t.Helper()

	snap := senso4s.New().DecodeAdvertisement(senso4s.Advertisement{
		Address: "C4:DD:57:65:43:21",
		Name:    "SENSO4S",
		RSSI:    -61,
		ManufacturerData: map[uint16][]byte{
			0x09CC: {0x85, 0x2D, 0x0A, 0x00, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
	})
	if snap.Failed() {
		t.Fatalf("unexpected decode error: %s", snap.Error)
	}
	return snap
}

func TestStoreRoundtrip(t *testing.T) {
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %s", err)
	}
	defer store.Close()

	ctx := context.Background()
	snap := testSnapshot(t)
	takenAt := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	if err := store.SaveSnapshot(ctx, snap, takenAt); err != nil {
		t.Fatalf("failed to save snapshot: %s", err)
	}

	records, err := store.RecentSnapshots(ctx, snap.Identifier, 10)
	if err != nil {
		t.Fatalf("failed to query snapshots: %s", err)
	}
	if len(records) != 1 {
		t.Fatalf("want 1 record, have %d", len(records))
	}
	if !records[0].TakenAt.Equal(takenAt) {
		t.Fatalf("want taken_at %s, have %s", takenAt, records[0].TakenAt)
	}
	if records[0].Error != "" {
		t.Fatalf("unexpected error column: %q", records[0].Error)
	}

	var payload struct {
		Identifier string                     `json:"identifier"`
		Model      string                     `json:"model"`
		Sensors    map[string]json.RawMessage `json:"sensors"`
	}
	if err := json.Unmarshal(records[0].Payload, &payload); err != nil {
		t.Fatalf("failed to parse payload: %s", err)
	}
	if payload.Identifier != "c4dd57654321" || payload.Model != "basic" {
		t.Fatalf("unexpected payload identity: %s / %s", payload.Identifier, payload.Model)
	}
	if _, ok := payload.Sensors["mass_percent"]; !ok {
		t.Fatalf("payload misses mass_percent sensor")
	}
}

func TestStoreOrdering(t *testing.T) {
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %s", err)
	}
	defer store.Close()

	ctx := context.Background()
	snap := testSnapshot(t)
	base := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.SaveSnapshot(ctx, snap, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("failed to save snapshot %d: %s", i, err)
		}
	}

	records, err := store.RecentSnapshots(ctx, snap.Identifier, 2)
	if err != nil {
		t.Fatalf("failed to query snapshots: %s", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, have %d", len(records))
	}

	// Newest first
	if !records[0].TakenAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("unexpected newest record timestamp %s", records[0].TakenAt)
	}
	if !records[0].TakenAt.After(records[1].TakenAt) {
		t.Fatalf("records not ordered newest first")
	}
}

func TestStoreFailedSnapshot(t *testing.T) {
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %s", err)
	}
	defer store.Close()

	ctx := context.Background()
	snap := testSnapshot(t)
	snap.Error = "acquisition aborted: context canceled"

	if err := store.SaveSnapshot(ctx, snap, time.Now()); err != nil {
		t.Fatalf("failed to save snapshot: %s", err)
	}

	records, err := store.RecentSnapshots(ctx, snap.Identifier, 1)
	if err != nil {
		t.Fatalf("failed to query snapshots: %s", err)
	}
	if len(records) != 1 || records[0].Error != snap.Error {
		t.Fatalf("error column not persisted: %+v", records)
	}
}
