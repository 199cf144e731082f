package connector

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// NumericReference derives a deterministic numeric reference (at most 10
// digits) from a router id, for processors whose transaction numbers must be
// numeric. UUIDs hash their 16 raw bytes so that case does not matter.
func NumericReference(id string) string {
	h := fnv.New32a()
	if u, err := uuid.Parse(id); err == nil {
		h.Write(u[:])
	} else {
		h.Write([]byte(id))
	}
	return fmt.Sprintf("%d", h.Sum32())
}

// NewReference returns a fresh random reference for calls that have no
// router record behind them, such as status inquiries
func NewReference() string {
	return NumericReference(uuid.NewString())
}
