package worker

// Wire messages exchanged with the summarizer worker service. Every request
// that expects an answer carries a correlation ID so responses can be
// matched even if request types interleave.

type initRequest struct {
	Type string `json:"type"`
}

type summarizeRequest struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	RequestID string `json:"request_id"`
}

type generateRequest struct {
	Type      string `json:"type"`
	Context   string `json:"context"`
	RequestID string `json:"request_id"`
}

type response struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Phrase    string  `json:"phrase,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	Message   string  `json:"message,omitempty"`
}
