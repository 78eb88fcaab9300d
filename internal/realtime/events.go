package realtime

// Server event types the bridge reacts to. Everything else passes through
// untouched via Raw.
const (
	EventTypeError                 = "error"
	EventTypeSessionCreated        = "session.created"
	EventTypeSessionUpdated        = "session.updated"
	EventTypeAudioDelta            = "response.output_audio.delta"
	EventTypeAudioDeltaLegacy      = "response.audio.delta"
	EventTypeFunctionCallArgsDone  = "response.function_call_arguments.done"
	EventTypeInputSpeechStarted    = "input_audio_buffer.speech_started"
	EventTypeResponseDone          = "response.done"
	EventTypeConversationItemAdded = "conversation.item.added"
)

// Event is one decoded server event from the realtime agent service.
type Event struct {
	Type string

	// Audio delta payload (base64), set for audio delta events.
	AudioDelta string

	// Function call fields, set for function_call_arguments.done events.
	CallID    string
	Name      string
	Arguments string

	// Raw is the full decoded event for passthrough consumers.
	Raw map[string]interface{}
}

// parseEvent lifts the fields the bridge cares about out of a decoded
// server event.
func parseEvent(raw map[string]interface{}) Event {
	ev := Event{Raw: raw}
	ev.Type, _ = raw["type"].(string)

	switch ev.Type {
	case EventTypeAudioDelta, EventTypeAudioDeltaLegacy:
		ev.AudioDelta, _ = raw["delta"].(string)
	case EventTypeFunctionCallArgsDone:
		ev.CallID, _ = raw["call_id"].(string)
		ev.Name, _ = raw["name"].(string)
		ev.Arguments, _ = raw["arguments"].(string)
	}
	return ev
}
