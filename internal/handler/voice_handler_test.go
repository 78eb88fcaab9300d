package handler

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVoiceFixture(t *testing.T) (*VoiceHandler, *repository.MemoryTenantRepository, *repository.MemoryCallRepository) {
	t.Helper()
	tenants := repository.NewMemoryTenantRepository()
	calls := repository.NewMemoryCallRepository()
	cfg := &config.Config{PublicURL: "https://voice.example.com"}
	h := NewVoiceHandler(cfg, routing.NewResolver(tenants), calls)
	return h, tenants, calls
}

func postWebhook(t *testing.T, h *VoiceHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("POST", "/voice", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleInboundCall(w, r)
	return w
}

func TestInboundCallConnectsMediaStream(t *testing.T) {
	h, tenants, calls := newVoiceFixture(t)
	require.NoError(t, tenants.PutRoute(context.Background(), "+15551234567", "tenant-a"))

	w := postWebhook(t, h, url.Values{
		"CallSid": {"CA100"},
		"From":    {"+15559990000"},
		"To":      {"+1 555 123 4567"},
	})

	require.Equal(t, 200, w.Code)
	assert.Equal(t, "text/xml", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "<Say>Thank you for calling. Please wait while I connect you to our scheduling assistant.</Say>")
	assert.Contains(t, body, "<Connect><Stream url=")
	assert.Less(t, strings.Index(body, "<Say>"), strings.Index(body, "<Connect>"),
		"greeting must be spoken before the stream connects")
	assert.Contains(t, body, "wss://voice.example.com/media?")
	assert.Contains(t, body, "callId=CA100")
	assert.Contains(t, body, "tenantId=tenant-a")
	assert.Contains(t, body, "plan=basic")
	assert.Contains(t, body, "to=%2B1+555+123+4567")

	call, err := calls.GetBySID(context.Background(), "CA100")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", call.TenantID)
	assert.Equal(t, domain.CallStatusRinging, call.Status)
	assert.Equal(t, domain.PlanBasic, call.Plan)
	assert.Equal(t, "+15559990000", call.From)
}

func TestInboundCallUnroutedNumberSaysGoodbye(t *testing.T) {
	h, _, calls := newVoiceFixture(t)

	w := postWebhook(t, h, url.Values{
		"CallSid": {"CA101"},
		"To":      {"+15550000000"},
	})

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<Say>")
	assert.Contains(t, body, "<Hangup/>")
	assert.NotContains(t, body, "<Stream")

	_, err := calls.GetBySID(context.Background(), "CA101")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInboundCallExplicitTenantIsPremium(t *testing.T) {
	h, _, calls := newVoiceFixture(t)

	r := httptest.NewRequest("POST", "/voice?tenantId=tenant-p",
		strings.NewReader(url.Values{"CallSid": {"CA102"}, "To": {"+15550001111"}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.HandleInboundCall(w, r)

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "tenantId=tenant-p")

	call, err := calls.GetBySID(context.Background(), "CA102")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPremium, call.Plan)
}
