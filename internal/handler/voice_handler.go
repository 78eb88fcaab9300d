package handler

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/routing"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	// callGreeting is spoken immediately, before the media stream attaches,
	// so the caller never sits in silence while the agent session dials.
	callGreeting = "Thank you for calling. Please wait while I connect you to our scheduling assistant."

	notConfiguredMessage = "This number is not configured for an assistant. Goodbye."
)

// VoiceHandler answers the provider's inbound-call webhook with TwiML that
// connects the call's media stream back to this service.
type VoiceHandler struct {
	cfg      *config.Config
	resolver *routing.Resolver
	calls    repository.CallRepository
}

// NewVoiceHandler creates a new voice webhook handler
func NewVoiceHandler(cfg *config.Config, resolver *routing.Resolver, calls repository.CallRepository) *VoiceHandler {
	return &VoiceHandler{cfg: cfg, resolver: resolver, calls: calls}
}

// HandleInboundCall resolves the dialed number to a tenant and returns TwiML
// connecting the media stream. Unroutable numbers get a polite spoken
// rejection, not an HTTP error, so the caller hears something.
func (h *VoiceHandler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid webhook payload", http.StatusBadRequest)
		return
	}

	callSID := r.FormValue("CallSid")
	from := r.FormValue("From")
	to := r.FormValue("To")
	explicitTenant := r.URL.Query().Get("tenantId")

	tenantID, plan, err := h.resolver.Resolve(r.Context(), to, explicitTenant)
	if err != nil {
		if errors.Is(err, routing.ErrRoutingNotFound) {
			logger.Base().Warn("inbound call for unrouted number",
				zap.String("call_sid", callSID), zap.String("to", to))
			writeTwiML(w, sayTwiML(notConfiguredMessage))
			return
		}
		logger.Base().Error("tenant resolution failed", zap.Error(err))
		http.Error(w, "routing failure", http.StatusInternalServerError)
		return
	}

	if _, err := h.calls.Upsert(r.Context(), &domain.UpsertCallRequest{
		CallSID:  callSID,
		TenantID: tenantID,
		From:     from,
		To:       to,
		Status:   domain.CallStatusRinging,
		Plan:     plan,
		Source:   domain.SourceTwilioVoice,
	}); err != nil {
		logger.Base().Warn("call record create failed", zap.String("call_sid", callSID), zap.Error(err))
	}

	streamURL := h.streamURL(tenantID, callSID, plan, to)
	logger.Base().Info("inbound call routed",
		zap.String("call_sid", callSID),
		zap.String("tenant_id", tenantID),
		zap.String("plan", plan))

	writeTwiML(w, connectStreamTwiML(callGreeting, streamURL))
}

// streamURL builds the wss endpoint the provider should attach the media
// stream to. Session identity travels as query parameters; plan and dialed
// number ride along as informational hints for the attach side.
func (h *VoiceHandler) streamURL(tenantID, callSID, plan, to string) string {
	host := strings.TrimPrefix(h.cfg.PublicURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	q := url.Values{}
	q.Set("tenantId", tenantID)
	q.Set("callId", callSID)
	if plan != "" {
		q.Set("plan", plan)
	}
	if to != "" {
		q.Set("to", to)
	}
	return fmt.Sprintf("wss://%s/media?%s", host, q.Encode())
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, xml.Header+body)
}

func connectStreamTwiML(greeting, streamURL string) string {
	return fmt.Sprintf(`<Response><Say>%s</Say><Connect><Stream url="%s" /></Connect></Response>`,
		escapeXML(greeting), escapeXML(streamURL))
}

func sayTwiML(message string) string {
	return fmt.Sprintf("<Response><Say>%s</Say><Hangup/></Response>", escapeXML(message))
}

func escapeXML(s string) string {
	var buf strings.Builder
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
