package agent

import (
	"github.com/bookline-ai/voice-scheduler-service/internal/tool"
)

// schedulingInstructions is the fixed prompt for the scheduling assistant.
// Language preference is established first and kept for the rest of the call;
// details are confirmed verbally before any tool is invoked.
const schedulingInstructions = "You are a friendly and efficient scheduling assistant. " +
	"Start every call by asking which language the caller prefers to speak. " +
	"After they choose a language, continue the rest of the conversation in that language. " +
	"Collect the caller's name, contact details, the service they want, the desired " +
	"appointment date and time, and any relevant notes. Confirm the details with the " +
	"caller before calling the create_appointment tool."

// Definition is a conversational agent definition for one call: a fixed
// instructional prompt plus the tool set bound to that call.
type Definition struct {
	Name         string
	Instructions string
	Tools        *tool.Registry
}

// Factory builds per-call agent definitions. Build is a pure function of its
// inputs: no state is shared between calls, and each definition is used by
// exactly one call bridge.
type Factory struct {
	recorder *tool.AppointmentRecorder
}

// NewFactory creates an agent factory over the appointment recorder.
func NewFactory(recorder *tool.AppointmentRecorder) *Factory {
	return &Factory{recorder: recorder}
}

// Build constructs a fresh agent definition for (tenantID, callSID). The
// single bound tool closes over both identifiers so every invocation during
// the call is correctly attributed without the model supplying them.
func (f *Factory) Build(tenantID, callSID string) *Definition {
	tools := tool.NewRegistry()
	tools.Register(f.recorder.Definition(tenantID, callSID))

	return &Definition{
		Name:         "Scheduling Assistant",
		Instructions: schedulingInstructions,
		Tools:        tools,
	}
}
