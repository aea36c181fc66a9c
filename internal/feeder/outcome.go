package feeder

// Kind is what a periodic check ended up doing.
type Kind string

const (
	KindReservation Kind = "reservation"
	KindTimer       Kind = "timer"
	KindNone        Kind = "none"
)

// Diagnostics explain why a check did not feed.
type Diagnostics struct {
	QueueLength         int   `json:"queueLength"`
	ReadyCount          int   `json:"readyCount"`
	CooldownRemainingMs int64 `json:"cooldownRemainingMs"`
	AutoFeedRemainingMs int64 `json:"autoFeedRemainingMs"`
}

// Outcome is the result of one decision.
type Outcome struct {
	Kind        Kind         `json:"outcome"`
	Requester   string       `json:"requester,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

func none(reason string) Outcome {
	return Outcome{Kind: KindNone, Reason: reason}
}
