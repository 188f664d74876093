package keys

import (
	"time"

	"kntpass.backend/internal/model"
)

// Status is the derived state of a key record. It is computed from the
// record at read time; the stored expired flag is never trusted.
type Status string

const (
	StatusAvailable Status = "available"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
)

// ComputeStatus derives the status of a record at the given instant.
// A used key is never reported expired, whatever its expiry date says.
func ComputeStatus(rec *model.KeyRecord, now time.Time) Status {
	if rec.Used {
		return StatusUsed
	}
	if now.After(rec.ExpiresAt) {
		return StatusExpired
	}
	return StatusAvailable
}

// Stats tallies ComputeStatus over every record.
func Stats(records []model.KeyRecord, now time.Time) model.KeyStats {
	stats := model.KeyStats{Total: len(records)}
	for i := range records {
		switch ComputeStatus(&records[i], now) {
		case StatusUsed:
			stats.Used++
		case StatusExpired:
			stats.Expired++
		}
	}
	stats.Available = stats.Total - stats.Used - stats.Expired
	return stats
}
