package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator derives a run id from the run's creation time.
type IDGenerator func(now time.Time) string

// NewRunID formats ids as KYT-YYYYMMDD-HHMMSS-xxxxxxxx with a random suffix.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("KYT-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
