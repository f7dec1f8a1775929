package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeHash derives the tamper-evident hash for one audit record. The
// hashed fields cover everything that makes a governance decision
// reconstructable after the fact: which agent acted, what it tried to do,
// what came back, and how it was resolved. Chaining through PrevHash means
// altering any entry invalidates every entry after it in the session.
func ComputeHash(t *Trace) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		t.ID,
		t.SessionID,
		t.AgentID,
		string(t.ActionType),
		string(t.Status),
		string(t.RequestBody),
		string(t.ResponseBody),
		t.PrevHash,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSessionSeed derives the PrevHash a session's first trace chains
// from, so a session with no prior entry still has a deterministic anchor.
func ComputeSessionSeed(sessionID string) string {
	hash := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(hash[:])
}

// VerifyChain walks a session's traces in order and confirms every hash
// matches its recorded contents and links to the trace before it. It
// reports the index of the first break, or -1 if the whole chain verifies.
func VerifyChain(traces []*Trace) (bool, int) {
	for i, t := range traces {
		if t.Hash != ComputeHash(t) {
			return false, i
		}
		if i > 0 && t.PrevHash != traces[i-1].Hash {
			return false, i
		}
	}
	return true, -1
}
