package audit

import (
	"encoding/json"
	"fmt"
)

// Verify checks the hash chain of the log at path and reports the first
// broken link.
func Verify(path string) error {
	prev := genesisHash()
	var seq uint64
	return scan(path, func(n int, line []byte) error {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", n, err)
		}
		if e.Seq != seq+1 {
			return fmt.Errorf("line %d: sequence gap: expected %d, got %d", n, seq+1, e.Seq)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("line %d: prev_hash mismatch: expected %s, got %s", n, short(prev), short(e.PrevHash))
		}
		if sum := e.digest(); e.Hash != sum {
			return fmt.Errorf("line %d: hash mismatch: expected %s, got %s", n, short(sum), short(e.Hash))
		}
		prev, seq = e.Hash, e.Seq
		return nil
	})
}

// Tail returns up to the last n entries of the log at path. Lines that do
// not decode are skipped.
func Tail(path string, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	ring := make([]Entry, 0, n)
	err := scan(path, func(_ int, line []byte) error {
		var e Entry
		if json.Unmarshal(line, &e) != nil {
			return nil
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ring, nil
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
