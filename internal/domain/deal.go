package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Pipeline stages
// ============================================================

// Stage is the position of a deal in the sales pipeline.
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageClosedWon   Stage = "closed_won"
	StageClosedLost  Stage = "closed_lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageLead,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether s is terminal.
func (s Stage) Closed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Late reports whether s is proposal or negotiation.
func (s Stage) Late() bool {
	return s == StageProposal || s == StageNegotiation
}

// ParseStage normalises user input ("Closed Won", "closed-won") into a Stage.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_"), "-", "_"))
	if !s.Valid() {
		return "", &ErrValidation{Field: "stage", Message: fmt.Sprintf("unknown stage %q", raw)}
	}
	return s, nil
}

// ============================================================
// Deal
// ============================================================

// Deal is a sales opportunity owned by one tenant.
// All timestamps are UTC.
type Deal struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Title             string     `json:"title"`
	CompanyName       string     `json:"company_name"`
	ContactPerson     string     `json:"contact_person,omitempty"`
	ContactEmail      string     `json:"contact_email,omitempty"`
	ContactPhone      string     `json:"contact_phone,omitempty"`
	Value             Money      `json:"value"`
	Stage             Stage      `json:"stage"`
	HealthScore       int        `json:"health_score"`
	LastContactAt     *time.Time `json:"last_contact_at"`
	ExpectedCloseDate *time.Time `json:"expected_close_date"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// NextActions is filled on read paths by the recommendation service.
	NextActions []string `json:"next_actions,omitempty"`
}

// DealFilter narrows a deal listing.
type DealFilter struct {
	Stage Stage
	Skip  int
	Limit int
}

// DealListResponse is the body of GET /v1/deals.
type DealListResponse struct {
	Deals []Deal `json:"deals"`
	Total int64  `json:"total"`
}

// ============================================================
// Deal: Request types
// ============================================================

const (
	maxShortText = 255
	maxPhone     = 50
	maxLongText  = 2000
)

// CreateDealRequest is the body for POST /v1/deals.
type CreateDealRequest struct {
	Title             string       `json:"title"`
	CompanyName       string       `json:"company_name"`
	ContactPerson     string       `json:"contact_person,omitempty"`
	ContactEmail      string       `json:"contact_email,omitempty"`
	ContactPhone      string       `json:"contact_phone,omitempty"`
	Value             Money        `json:"value"`
	Stage             Stage        `json:"stage,omitempty"`
	ExpectedCloseDate OptionalTime `json:"expected_close_date"`
	Notes             string       `json:"notes,omitempty"`
}

// Validate checks field constraints and fills the default stage.
func (r *CreateDealRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.CompanyName = strings.TrimSpace(r.CompanyName)

	if err := requiredText("title", r.Title, maxShortText); err != nil {
		return err
	}
	if err := requiredText("company_name", r.CompanyName, maxShortText); err != nil {
		return err
	}
	if err := optionalText("contact_person", r.ContactPerson, maxShortText); err != nil {
		return err
	}
	if err := optionalText("contact_email", r.ContactEmail, maxShortText); err != nil {
		return err
	}
	if err := optionalText("contact_phone", r.ContactPhone, maxPhone); err != nil {
		return err
	}
	if err := optionalText("notes", r.Notes, maxLongText); err != nil {
		return err
	}
	if !r.Value.IsPositive() {
		return &ErrValidation{Field: "value", Message: "must be greater than 0"}
	}
	if r.Stage == "" {
		r.Stage = StageLead
	}
	if !r.Stage.Valid() {
		return &ErrValidation{Field: "stage", Message: fmt.Sprintf("unknown stage %q", r.Stage)}
	}
	return nil
}

// UpdateDealRequest is the body for PATCH /v1/deals/{dealId}.
// Nil fields are left untouched.
type UpdateDealRequest struct {
	Title             *string      `json:"title,omitempty"`
	CompanyName       *string      `json:"company_name,omitempty"`
	ContactPerson     *string      `json:"contact_person,omitempty"`
	ContactEmail      *string      `json:"contact_email,omitempty"`
	ContactPhone      *string      `json:"contact_phone,omitempty"`
	Value             *Money       `json:"value,omitempty"`
	Stage             *Stage       `json:"stage,omitempty"`
	ExpectedCloseDate OptionalTime `json:"expected_close_date"`
	Notes             *string      `json:"notes,omitempty"`
}

// Validate applies the same constraints as CreateDealRequest to the fields present.
func (r *UpdateDealRequest) Validate() error {
	if r.Title != nil {
		*r.Title = strings.TrimSpace(*r.Title)
		if err := requiredText("title", *r.Title, maxShortText); err != nil {
			return err
		}
	}
	if r.CompanyName != nil {
		*r.CompanyName = strings.TrimSpace(*r.CompanyName)
		if err := requiredText("company_name", *r.CompanyName, maxShortText); err != nil {
			return err
		}
	}
	if r.ContactPerson != nil {
		if err := optionalText("contact_person", *r.ContactPerson, maxShortText); err != nil {
			return err
		}
	}
	if r.ContactEmail != nil {
		if err := optionalText("contact_email", *r.ContactEmail, maxShortText); err != nil {
			return err
		}
	}
	if r.ContactPhone != nil {
		if err := optionalText("contact_phone", *r.ContactPhone, maxPhone); err != nil {
			return err
		}
	}
	if r.Notes != nil {
		if err := optionalText("notes", *r.Notes, maxLongText); err != nil {
			return err
		}
	}
	if r.Value != nil && !r.Value.IsPositive() {
		return &ErrValidation{Field: "value", Message: "must be greater than 0"}
	}
	if r.Stage != nil && !r.Stage.Valid() {
		return &ErrValidation{Field: "stage", Message: fmt.Sprintf("unknown stage %q", *r.Stage)}
	}
	return nil
}

// Apply copies the present fields onto d.
func (r *UpdateDealRequest) Apply(d *Deal) {
	if r.Title != nil {
		d.Title = *r.Title
	}
	if r.CompanyName != nil {
		d.CompanyName = *r.CompanyName
	}
	if r.ContactPerson != nil {
		d.ContactPerson = *r.ContactPerson
	}
	if r.ContactEmail != nil {
		d.ContactEmail = *r.ContactEmail
	}
	if r.ContactPhone != nil {
		d.ContactPhone = *r.ContactPhone
	}
	if r.Value != nil {
		d.Value = *r.Value
	}
	if r.Stage != nil {
		d.Stage = *r.Stage
	}
	if r.ExpectedCloseDate.Set {
		d.ExpectedCloseDate = UTCPtr(r.ExpectedCloseDate.Value)
	}
	if r.Notes != nil {
		d.Notes = *r.Notes
	}
}

func requiredText(field, value string, max int) error {
	if value == "" {
		return &ErrValidation{Field: field, Message: "required"}
	}
	return optionalText(field, value, max)
}

func optionalText(field, value string, max int) error {
	if len([]rune(value)) > max {
		return &ErrValidation{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

// ============================================================
// Timestamps
// ============================================================

// OptionalTime distinguishes an absent JSON field from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// SomeTime returns an OptionalTime holding t.
func SomeTime(t time.Time) OptionalTime {
	return OptionalTime{Set: true, Value: &t}
}

func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value.UTC())
}

func (o *OptionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		o.Value = nil
		return nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	o.Value = &t
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339, a naive date-time or a bare date.
// Naive values are taken as UTC. The result is always in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ErrValidation{Field: "timestamp", Message: fmt.Sprintf("unrecognised format %q", raw)}
}

// UTCPtr returns a copy of t in UTC, or nil.
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
