package senso4s

import "sync"

// HistoryPolicy selects how a malformed history notification (length not a
// multiple of the entry size) is handled
type HistoryPolicy int

const (

	// HistoryBestEffort decodes the valid prefix of a malformed
	// notification and keeps going (legacy behavior)
	HistoryBestEffort HistoryPolicy = iota

	// HistoryStrict discards the whole burst once a malformed
	// notification is seen; history then reports no data
	HistoryStrict
)

// historyAccumulator reduces a burst of history notifications to the latest
// entry. Entries arrive oldest to newest, so the last one seen wins and no
// buffering of the burst is required. One accumulator is owned by a single
// acquisition and passed into its subscription handler, never shared across
// concurrent acquisitions
type historyAccumulator struct {
	policy HistoryPolicy

	mu       sync.Mutex
	latest   HistoryEntry
	count    int
	poisoned bool
}

// absorb processes one notification payload in arrival order
func (h *historyAccumulator) absorb(data []byte) error {
	entries, err := decodeHistoryChunk(data)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.poisoned {
		return nil
	}
	if err != nil && h.policy == HistoryStrict {
		h.poisoned = true
		h.count = 0
		return err
	}

	for _, entry := range entries {
		h.latest = entry
		h.count++
	}
	return err
}

// latestEntry returns the most recent entry of the burst, if any arrived
func (h *historyAccumulator) latestEntry() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.poisoned || h.count == 0 {
		return HistoryEntry{}, false
	}
	return h.latest, true
}
