package models

import (
	"time"
)

type ReplyTone string

const (
	ReplyToneProfessional ReplyTone = "PROFESSIONAL"
	ReplyToneFriendly     ReplyTone = "FRIENDLY"
	ReplyToneCasual       ReplyTone = "CASUAL"
	ReplyToneFormal       ReplyTone = "FORMAL"
)

func (t ReplyTone) Valid() bool {
	switch t {
	case ReplyToneProfessional, ReplyToneFriendly, ReplyToneCasual, ReplyToneFormal:
		return true
	}
	return false
}

// Location is a Google Business Profile location with its OAuth credentials.
// AccessToken and RefreshToken hold encrypted values; empty means NULL.
type Location struct {
	ID                   string     `db:"id" json:"id"`
	OrganizationID       int64      `db:"organization_id" json:"organizationId"`
	Name                 string     `db:"name" json:"name"`
	GMBAccountID         string     `db:"gmb_account_id" json:"gmbAccountId"`
	GMBLocationID        string     `db:"gmb_location_id" json:"gmbLocationId"`
	AccessToken          string     `db:"access_token" json:"-"`
	RefreshToken         string     `db:"refresh_token" json:"-"`
	TokenExpiresAt       *time.Time `db:"token_expires_at" json:"tokenExpiresAt"`
	AutoReplyEnabled     bool       `db:"auto_reply_enabled" json:"autoReplyEnabled"`
	AutoPostEnabled      bool       `db:"auto_post_enabled" json:"autoPostEnabled"`
	ReplyTonePreference  ReplyTone  `db:"reply_tone_preference" json:"replyTonePreference"`
	LastReviewsFetchedAt *time.Time `db:"last_reviews_fetched_at" json:"lastReviewsFetchedAt"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// Connected reports whether the location carries a refresh token.
func (l *Location) Connected() bool {
	return l.RefreshToken != ""
}

type LocationSettings struct {
	AutoReplyEnabled    bool      `json:"autoReplyEnabled"`
	AutoPostEnabled     bool      `json:"autoPostEnabled"`
	ReplyTonePreference ReplyTone `json:"replyTonePreference"`
}
