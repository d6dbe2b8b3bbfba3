package relay

/* State is a step in the life of an inbound request
 * Lifecycle: Received -> ChallengeHandled | Validated -> SyncForward | AsyncForward | Enqueued -> Acked
 * Rejected can follow any non-terminal state
 */
type State int

const (
	Received State = iota + 1
	ChallengeHandled
	Validated
	SyncForward
	AsyncForward
	Enqueued
	Acked
	Rejected
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case ChallengeHandled:
		return "challenge_handled"
	case Validated:
		return "validated"
	case SyncForward:
		return "sync_forward"
	case AsyncForward:
		return "async_forward"
	case Enqueued:
		return "queued"
	case Acked:
		return "acked"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func stateNames(states []State) []string {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return names
}

// forwardState maps a strategy to the state it moves a validated request into
func forwardState(d DeliveryStrategy) State {
	switch d {
	case Sync:
		return SyncForward
	case Async:
		return AsyncForward
	default:
		return Enqueued
	}
}
