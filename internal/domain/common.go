package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB represents a PostgreSQL JSONB field
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// Plan tiers. Basic tenants share a routed number; premium tenants bring
// their own dedicated number.
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Source tags distinguishing agent-created records from dashboard-created ones.
const (
	SourceTwilioVoice = "twilio_voice"
	SourceManual      = "manual"
)
