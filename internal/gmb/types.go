package gmb

import (
	"path"
	"strings"
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
)

type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type TimeOfDay struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type TimeInterval struct {
	StartDate Date      `json:"startDate"`
	StartTime TimeOfDay `json:"startTime"`
	EndDate   Date      `json:"endDate"`
	EndTime   TimeOfDay `json:"endTime"`
}

type LocalPostEvent struct {
	Title    string        `json:"title"`
	Schedule *TimeInterval `json:"schedule,omitempty"`
}

type LocalPostOffer struct {
	CouponCode      string `json:"couponCode,omitempty"`
	RedeemOnlineURL string `json:"redeemOnlineUrl,omitempty"`
	TermsConditions string `json:"termsConditions,omitempty"`
}

type CallToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url,omitempty"`
}

type MediaItem struct {
	MediaFormat string `json:"mediaFormat"`
	SourceURL   string `json:"sourceUrl"`
}

type LocalPost struct {
	Name         string          `json:"name,omitempty"`
	LanguageCode string          `json:"languageCode,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	TopicType    string          `json:"topicType"`
	CallToAction *CallToAction   `json:"callToAction,omitempty"`
	Event        *LocalPostEvent `json:"event,omitempty"`
	Offer        *LocalPostOffer `json:"offer,omitempty"`
	Media        []MediaItem     `json:"media,omitempty"`
	State        string          `json:"state,omitempty"`
	SearchURL    string          `json:"searchUrl,omitempty"`
}

type Reviewer struct {
	DisplayName     string `json:"displayName"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	IsAnonymous     bool   `json:"isAnonymous,omitempty"`
}

type ReviewReply struct {
	Comment    string    `json:"comment"`
	UpdateTime time.Time `json:"updateTime,omitempty"`
}

type Review struct {
	Name        string       `json:"name"`
	ReviewID    string       `json:"reviewId"`
	Reviewer    Reviewer     `json:"reviewer"`
	StarRating  string       `json:"starRating"`
	Comment     string       `json:"comment,omitempty"`
	CreateTime  time.Time    `json:"createTime"`
	UpdateTime  time.Time    `json:"updateTime"`
	ReviewReply *ReviewReply `json:"reviewReply,omitempty"`
}

type ListReviewsResponse struct {
	Reviews          []Review `json:"reviews"`
	AverageRating    float64  `json:"averageRating"`
	TotalReviewCount int      `json:"totalReviewCount"`
	NextPageToken    string   `json:"nextPageToken"`
}

var starRatings = map[string]int{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// Stars converts the enum rating to 1-5. Unknown values map to 0.
func (r Review) Stars() int {
	return starRatings[r.StarRating]
}

// ToModel maps a Google review onto the stored representation.
func (r Review) ToModel(locationID string) *models.Review {
	review := &models.Review{
		LocationID:       locationID,
		ExternalReviewID: r.ReviewID,
		ReviewerName:     r.Reviewer.DisplayName,
		StarRating:       r.Stars(),
		Comment:          r.Comment,
		CreateTime:       r.CreateTime,
		UpdateTime:       r.UpdateTime,
	}
	if r.ReviewReply != nil {
		review.OwnerReply = r.ReviewReply.Comment
	}
	return review
}

// LocationName builds the v4 resource name accounts/{a}/locations/{l}. Both ids
// may be given bare or with their collection prefix.
func LocationName(accountID, locationID string) string {
	return "accounts/" + strings.TrimPrefix(accountID, "accounts/") +
		"/locations/" + strings.TrimPrefix(locationID, "locations/")
}

var topicTypes = map[models.PostType]string{
	models.PostTypeUpdate: "STANDARD",
	models.PostTypeEvent:  "EVENT",
	models.PostTypeOffer:  "OFFER",
}

// NewLocalPost converts a stored post into the localPosts.create body.
func NewLocalPost(p *models.Post) *LocalPost {
	lp := &LocalPost{
		LanguageCode: "en",
		Summary:      p.Content,
		TopicType:    topicTypes[p.Type],
	}
	if lp.TopicType == "" {
		lp.TopicType = "STANDARD"
	}

	for _, u := range p.MediaURLs {
		format := "PHOTO"
		if strings.EqualFold(path.Ext(u), ".mp4") {
			format = "VIDEO"
		}
		lp.Media = append(lp.Media, MediaItem{MediaFormat: format, SourceURL: u})
	}

	if cta := p.Details.CallToAction; cta != nil && cta.ActionType != "" {
		lp.CallToAction = &CallToAction{ActionType: cta.ActionType, URL: cta.URL}
	}

	switch p.Type {
	case models.PostTypeEvent, models.PostTypeOffer:
		lp.Event = &LocalPostEvent{Title: p.Title}
		if p.Details.EventStart != nil && p.Details.EventEnd != nil {
			lp.Event.Schedule = &TimeInterval{
				StartDate: toDate(*p.Details.EventStart),
				StartTime: toTimeOfDay(*p.Details.EventStart),
				EndDate:   toDate(*p.Details.EventEnd),
				EndTime:   toTimeOfDay(*p.Details.EventEnd),
			}
		}
	}

	if p.Type == models.PostTypeOffer {
		lp.Offer = &LocalPostOffer{
			CouponCode:      p.Details.CouponCode,
			RedeemOnlineURL: p.Details.RedeemURL,
			TermsConditions: p.Details.Terms,
		}
	}
	return lp
}

func toDate(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func toTimeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay{Hours: t.Hour(), Minutes: t.Minute()}
}
