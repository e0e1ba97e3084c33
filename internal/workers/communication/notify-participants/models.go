package notifyparticipants

const (
	TypeMatchFound    = "match_found"
	TypeLeftUnmatched = "left_unmatched"
)

const (
	StatusSent     = "SENT"
	StatusFailed   = "FAILED"
	StatusDisabled = "DISABLED"
)

// PriorityHigh is the only priority that triggers SMS delivery.
const PriorityHigh = "high"

type Input struct {
	MatchRunID       string                 `json:"matchRunId"`
	SurveyID         string                 `json:"surveyId"`
	NotificationType string                 `json:"notificationType"`
	RecipientID      string                 `json:"recipientId"`
	PartnerID        string                 `json:"partnerId,omitempty"`
	TotalDiff        int                    `json:"totalDiff,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"`
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"`
}
