package transfer

import "github.com/maheshrc27/locaposty/internal/models"

type LocationSettingsRequest struct {
	AutoReplyEnabled    *bool             `json:"autoReplyEnabled"`
	AutoPostEnabled     *bool             `json:"autoPostEnabled"`
	ReplyTonePreference *models.ReplyTone `json:"replyTonePreference"`
}

type ConnectResult struct {
	Connected int `json:"connected"`
}
