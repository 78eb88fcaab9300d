package twilio

import (
	"fmt"

	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// CredentialValidator verifies that a set of Twilio credentials owns a given
// phone number. Premium tenants submit their own account SID, auth token and
// number; nothing is stored here, validation only.
type CredentialValidator struct{}

// NewCredentialValidator creates a new credential validator.
func NewCredentialValidator() *CredentialValidator {
	return &CredentialValidator{}
}

// Validate checks via the Twilio REST API that phoneNumber belongs to the
// account identified by accountSID/authToken.
func (v *CredentialValidator) Validate(accountSID, authToken, phoneNumber string) error {
	if accountSID == "" || authToken == "" || phoneNumber == "" {
		return fmt.Errorf("accountSid, authToken and phoneNumber are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	params := &api.ListIncomingPhoneNumberParams{}
	params.SetPhoneNumber(phoneNumber)
	params.SetLimit(1)

	numbers, err := client.Api.ListIncomingPhoneNumber(params)
	if err != nil {
		logger.Base().Warn("twilio credential check failed", zap.Error(err))
		return fmt.Errorf("unable to verify credentials: %w", err)
	}
	if len(numbers) == 0 {
		return fmt.Errorf("phone number %s not found in account", phoneNumber)
	}

	logger.Base().Info("twilio credentials verified", zap.String("phone_number", phoneNumber))
	return nil
}
