package domain

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Activities (deal timeline)
// ============================================================

// ActivityType classifies a timeline entry.
type ActivityType string

const (
	ActivityNote        ActivityType = "note"
	ActivityCall        ActivityType = "call"
	ActivityEmail       ActivityType = "email"
	ActivityMeeting     ActivityType = "meeting"
	ActivityStageChange ActivityType = "stage_change"
	ActivitySystem      ActivityType = "system"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityNote, ActivityCall, ActivityEmail, ActivityMeeting, ActivityStageChange, ActivitySystem:
		return true
	}
	return false
}

// Activity is an immutable timeline entry owned by a deal.
type Activity struct {
	ID           string         `json:"id"`
	DealID       string         `json:"deal_id"`
	UserID       string         `json:"user_id"`
	ActivityType ActivityType   `json:"activity_type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CreateActivityRequest is the body for POST /v1/activities.
type CreateActivityRequest struct {
	DealID       string       `json:"deal_id"`
	ActivityType ActivityType `json:"activity_type"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
}

// Validate checks field constraints.
func (r *CreateActivityRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.DealID == "" {
		return &ErrValidation{Field: "deal_id", Message: "required"}
	}
	if !r.ActivityType.Valid() {
		return &ErrValidation{Field: "activity_type", Message: fmt.Sprintf("unknown activity type %q", r.ActivityType)}
	}
	if err := requiredText("title", r.Title, maxShortText); err != nil {
		return err
	}
	return optionalText("description", r.Description, maxLongText)
}
