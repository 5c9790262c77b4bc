package ledger

import (
	"crypto/rand"

	"github.com/charmbracelet/log"
)

// LocalSeedSource is an in-process stand-in for the external verifiable
// randomness provider: it watches for RandomSeedRequested events and
// fulfills each request with 32 bytes from crypto/rand. Deployments with a
// real VRF provider leave this unwired.
type LocalSeedSource struct {
	ledger *MemoryLedger
	logger *log.Logger
}

// NewLocalSeedSource attaches a local randomness source to the ledger.
func NewLocalSeedSource(l *MemoryLedger, logger *log.Logger) *LocalSeedSource {
	src := &LocalSeedSource{ledger: l, logger: logger.WithPrefix("seed-source")}
	l.Subscribe(src)
	return src
}

// OnLedgerEvent fulfills seed requests as they are announced.
func (s *LocalSeedSource) OnLedgerEvent(event Event) {
	if event.Type != EventRandomSeedRequested {
		return
	}
	value := make([]byte, 32)
	if _, err := rand.Read(value); err != nil {
		s.logger.Error("Failed to draw randomness", "error", err)
		return
	}
	if err := s.ledger.FulfillRandomSeed(event.Ref, value); err != nil {
		s.logger.Error("Failed to fulfill seed request", "requestId", event.Ref, "error", err)
		return
	}
	s.logger.Debug("Fulfilled seed request", "table", event.TableID, "requestId", event.Ref)
}
