package deposit

import "github.com/kobovault/kobovault/internal/ledger"

// EventKind is the gateway's classification of a payment status event.
type EventKind string

const (
	EventChargeSuccess   EventKind = "charge.success"
	EventChargeFailed    EventKind = "charge.failed"
	EventChargeAbandoned EventKind = "charge.abandoned"
)

// NextStatus is the settlement state machine: given the entry's current
// status and an inbound event kind, it returns the target status and
// whether a transition should be attempted at all. A successful settlement
// is only reachable from pending; failure marks never displace success.
func NextStatus(current ledger.Status, kind EventKind) (ledger.Status, bool) {
	switch kind {
	case EventChargeSuccess:
		if current == ledger.StatusPending {
			return ledger.StatusSuccess, true
		}
	case EventChargeFailed:
		if current != ledger.StatusSuccess {
			return ledger.StatusFailed, true
		}
	case EventChargeAbandoned:
		if current != ledger.StatusSuccess {
			return ledger.StatusAbandoned, true
		}
	}
	return current, false
}
