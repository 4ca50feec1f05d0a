// Package dedup provides a bloom-filter gate in front of dispatch that
// suppresses duplicate object notifications: the same bucket event
// redelivered by the object store's at-least-once notification channel.
package dedup

import (
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/castiron-io/etlworker/internal/config"
)

// bucketWindow is the coarseness at which arrival time folds into the
// dedup key: two notifications for the same object within the same
// window are treated as the same delivery, while a later real re-upload
// of the same path still gets its own key once the window rolls over.
const bucketWindow = 2 * time.Second

// Filter gates notifications through a bloom filter keyed on
// (namespace, path, event type, coarse arrival window). It never rejects
// an event as duplicate with certainty — only with the configured false
// positive rate — matching the teacher's own tolerance for probabilistic
// announce filtering.
type Filter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// New sizes a filter per cfg, grounded on the teacher's per-category
// bloom.NewWithEstimates sizing in its peer filter exchange.
func New(cfg config.DedupConfig) *Filter {
	return &Filter{filter: bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate)}
}

// Seen reports whether an equivalent notification has already passed
// through the filter, and records this one regardless of the outcome.
func (f *Filter) Seen(namespace, path, eventType string, arrival time.Time) bool {
	key := dedupKey(namespace, path, eventType, arrival)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filter.TestString(key) {
		return true
	}
	f.filter.AddString(key)
	return false
}

func dedupKey(namespace, path, eventType string, arrival time.Time) string {
	window := arrival.Truncate(bucketWindow).Unix()
	return fmt.Sprintf("%s/%s|%s|%d", namespace, path, eventType, window)
}
