package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type PostType string

const (
	PostTypeUpdate PostType = "UPDATE"
	PostTypeEvent  PostType = "EVENT"
	PostTypeOffer  PostType = "OFFER"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypeUpdate, PostTypeEvent, PostTypeOffer:
		return true
	}
	return false
}

type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusFailed    PostStatus = "FAILED"
	PostStatusDeleted   PostStatus = "DELETED"
)

// Publishable reports whether a post in this status may move to PUBLISHED.
func (s PostStatus) Publishable() bool {
	return s == PostStatusDraft || s == PostStatusScheduled
}

// Editable reports whether the API may still change the post.
func (s PostStatus) Editable() bool {
	return s == PostStatusDraft || s == PostStatusScheduled || s == PostStatusFailed
}

type Post struct {
	ID               string      `db:"id" json:"id"`
	LocationID       string      `db:"location_id" json:"locationId"`
	CreatedBy        int64       `db:"created_by" json:"createdBy"`
	Title            string      `db:"title" json:"title"`
	Content          string      `db:"content" json:"content"`
	Type             PostType    `db:"type" json:"type"`
	Status           PostStatus  `db:"status" json:"status"`
	ScheduledAt      *time.Time  `db:"scheduled_at" json:"scheduledAt"`
	PublishedAt      *time.Time  `db:"published_at" json:"publishedAt"`
	MediaURLs        []string    `db:"media_urls" json:"mediaUrls"`
	Details          PostDetails `db:"details" json:"details"`
	ExternalPostName string      `db:"external_post_name" json:"externalPostName,omitempty"`
	ErrorMessage     string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updatedAt"`
}

// PostDetails holds the type specific parts of a local post. Stored as jsonb.
type PostDetails struct {
	EventStart   *time.Time    `json:"eventStart,omitempty"`
	EventEnd     *time.Time    `json:"eventEnd,omitempty"`
	CouponCode   string        `json:"couponCode,omitempty"`
	RedeemURL    string        `json:"redeemUrl,omitempty"`
	Terms        string        `json:"terms,omitempty"`
	CallToAction *CallToAction `json:"callToAction,omitempty"`
}

type CallToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url,omitempty"`
}

func (d PostDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *PostDetails) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = PostDetails{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return errors.New("unsupported type for post details")
	}
}
