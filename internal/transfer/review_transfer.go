package transfer

type SyncRequest struct {
	LocationID string `json:"locationId"`
}

type SyncResult struct {
	Locations int      `json:"locations"`
	Upserted  int      `json:"upserted"`
	Errors    []string `json:"errors,omitempty"`
}

const (
	OutcomeCreated        = "created"
	OutcomeAutoPosted     = "auto-replied-and-posted"
	OutcomePendingApprove = "reply-generated-pending-approval"
	OutcomeError          = "error"
)

// AutoReplyOutcome reports what happened to one review, or to a whole
// location when ReviewID is zero.
type AutoReplyOutcome struct {
	LocationID string `json:"locationId"`
	ReviewID   int64  `json:"reviewId,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

type ApproveReplyRequest struct {
	Content string `json:"content"`
}
