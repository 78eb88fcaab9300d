package domain

import (
	"time"
)

// Call lifecycle status tags. The provider assigns the initial status; the
// dashboard may apply business tags later, so the column stays free text.
const (
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

// Call represents one inbound call attempt. Created by the voice webhook at
// call start and merged as the call progresses; never deleted automatically.
type Call struct {
	CallSID   string    `json:"call_sid" gorm:"type:varchar(64);primary_key"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(255);not null;index"`
	From      string    `json:"from" gorm:"column:from_number;type:varchar(32)"`
	To        string    `json:"to" gorm:"column:to_number;type:varchar(32)"`
	Status    string    `json:"status" gorm:"type:varchar(64)"`
	Plan      string    `json:"plan" gorm:"type:varchar(32)"`
	Source    string    `json:"source" gorm:"type:varchar(32)"`
	StartedAt time.Time `json:"started_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Call
func (Call) TableName() string {
	return "calls"
}

// UpsertCallRequest carries the merge payload for a call record. Zero-valued
// fields are left untouched on merge.
type UpsertCallRequest struct {
	CallSID  string
	TenantID string
	From     string
	To       string
	Status   string
	Plan     string
	Source   string
}
