package queue

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// receiptStore maps message ids to the receipt handle of their latest
// delivery to this client. Entries go away on delete or once older than ttl.
type receiptStore struct {
	// mu makes remove's compare-and-delete atomic against put.
	mu       sync.Mutex
	receipts *ttlcache.Cache[string, string]
	stopOnce sync.Once
}

func newReceiptStore(ttl time.Duration) *receiptStore {
	receipts := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go receipts.Start()
	return &receiptStore{receipts: receipts}
}

// put records handle for id, replacing any earlier delivery.
func (s *receiptStore) put(id, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts.Set(id, handle, ttlcache.DefaultTTL)
}

func (s *receiptStore) get(id string) (string, bool) {
	item := s.receipts.Get(id)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// remove drops id only if it still maps to handle, so a newer delivery
// received concurrently keeps its receipt.
func (s *receiptStore) remove(id, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.receipts.Get(id); item != nil && item.Value() == handle {
		s.receipts.Delete(id)
	}
}

// len counts stored receipts, including expired ones the janitor has not
// evicted yet.
func (s *receiptStore) len() int {
	return s.receipts.Len()
}

// stop ends the expiry janitor.
func (s *receiptStore) stop() {
	s.stopOnce.Do(s.receipts.Stop)
}
