package models

import "time"

type Review struct {
	ID               int64     `db:"id" json:"id"`
	LocationID       string    `db:"location_id" json:"locationId"`
	ExternalReviewID string    `db:"external_review_id" json:"externalReviewId"`
	ReviewerName     string    `db:"reviewer_name" json:"reviewerName"`
	StarRating       int       `db:"star_rating" json:"starRating"`
	Comment          string    `db:"comment" json:"comment"`
	OwnerReply       string    `db:"owner_reply" json:"ownerReply,omitempty"`
	CreateTime       time.Time `db:"create_time" json:"createTime"`
	UpdateTime       time.Time `db:"update_time" json:"updateTime"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

type ReplyStatus string

const (
	ReplyStatusDraft           ReplyStatus = "DRAFT"
	ReplyStatusPendingApproval ReplyStatus = "PENDING_APPROVAL"
	ReplyStatusAutoPosted      ReplyStatus = "AUTO_POSTED"
	ReplyStatusPosted          ReplyStatus = "POSTED"
	ReplyStatusFailed          ReplyStatus = "FAILED"
)

type ReviewReply struct {
	ID           int64       `db:"id" json:"id"`
	ReviewID     int64       `db:"review_id" json:"reviewId"`
	Content      string      `db:"content" json:"content"`
	Sentiment    Sentiment   `db:"sentiment" json:"sentiment"`
	Status       ReplyStatus `db:"status" json:"status"`
	ErrorMessage string      `db:"error_message" json:"errorMessage,omitempty"`
	PostedAt     *time.Time  `db:"posted_at" json:"postedAt"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}
