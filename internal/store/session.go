package store

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionIDGenerator creates session ids for new carts.
// Implemented by RandomSessionIDs (production) and testutil.SequentialIDs (tests).
type SessionIDGenerator interface {
	Generate(now time.Time) string
}

// RandomSessionIDs generates "session_<unix-millis>_<random>" ids.
//
// The random suffix comes from a version 4 UUID, so ids are unique with high
// probability across devices without any coordination.
//
// Thread-safety: RandomSessionIDs is stateless and safe for concurrent use.
type RandomSessionIDs struct{}

// Generate returns a new session id stamped with now.
func (RandomSessionIDs) Generate(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), hex.EncodeToString(id[:6]))
}
