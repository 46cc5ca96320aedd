package models

import "time"

type AttemptOutcome string

const (
	AttemptPublished AttemptOutcome = "PUBLISHED"
	AttemptRetry     AttemptOutcome = "RETRY"
	AttemptFailed    AttemptOutcome = "FAILED"
	AttemptRejected  AttemptOutcome = "REJECTED"
)

// PublishAttempt is one run of the publish job for a post.
type PublishAttempt struct {
	ID           int64          `db:"id" json:"id"`
	PostID       string         `db:"post_id" json:"postId"`
	Outcome      AttemptOutcome `db:"outcome" json:"outcome"`
	ErrorMessage string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}
