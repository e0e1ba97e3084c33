package models

// RespondentContact carries just the delivery details for notifications.
type RespondentContact struct {
	RespondentID string `json:"respondentId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
}
