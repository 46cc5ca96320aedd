package transfer

import (
	"time"

	"github.com/maheshrc27/locaposty/internal/models"
)

type PostCreation struct {
	LocationID  string             `json:"locationId"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Type        models.PostType    `json:"type"`
	Status      models.PostStatus  `json:"status"`
	ScheduledAt *time.Time         `json:"scheduledAt"`
	MediaURLs   []string           `json:"mediaUrls"`
	Details     models.PostDetails `json:"details"`
}

// PostUpdate carries only the fields the client wants to change.
type PostUpdate struct {
	Title       *string             `json:"title"`
	Content     *string             `json:"content"`
	Type        *models.PostType    `json:"type"`
	Status      *models.PostStatus  `json:"status"`
	ScheduledAt *time.Time          `json:"scheduledAt"`
	MediaURLs   *[]string           `json:"mediaUrls"`
	Details     *models.PostDetails `json:"details"`
}

type PublishRequest struct {
	PostID string `json:"postId"`
}
