package plugincontract

// CallEvent represents a dispatch audit notification delivered to the
// configured audit queue.
type CallEvent struct {
	EventID    string `json:"eventId"`
	EventType  string `json:"eventType"`  // e.g. "remote.call"
	OccurredAt string `json:"occurredAt"` // ISO 8601 timestamp
	Method     string `json:"method"`
	User       string `json:"user,omitempty"`
	ErrorCode  int    `json:"errorCode,omitempty"`
}
