// Package sync reconciles OpenPhone calls and conversations with internal
// client records, producing a deduplicated communications history.
package sync

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is the dispatch target of a webhook event.
type EventKind string

const (
	KindCallSummary  EventKind = "call_summary"
	KindCall         EventKind = "call"
	KindConversation EventKind = "conversation"
	KindUnknown      EventKind = "unknown"
)

// ParsedEvent is a webhook event flattened from whatever nesting the provider
// sent. Payload is the innermost object of interest; Data is the envelope
// data it was lifted from.
type ParsedEvent struct {
	Kind    EventKind
	Type    string
	Payload map[string]any
	Data    map[string]any
}

// ParseEvent normalizes a raw webhook body. Provider payloads arrive either
// flat or wrapped in an {object: "event"} envelope, with the record of
// interest at data.object or data.
func ParseEvent(raw []byte) (ParsedEvent, error) {
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		return ParsedEvent{}, fmt.Errorf("parse webhook body: %w", err)
	}
	return normalizeEvent(event), nil
}

func normalizeEvent(event map[string]any) ParsedEvent {
	envelope := event
	if inner, ok := event["object"].(map[string]any); ok {
		if obj, _ := inner["object"].(string); obj == "event" {
			envelope = inner
		}
	}

	eventType := firstString(envelope, "type", "eventType", "event")
	if eventType == "" {
		eventType = firstString(event, "type", "eventType", "event")
	}

	data, ok := envelope["data"].(map[string]any)
	if !ok {
		if data, ok = event["data"].(map[string]any); !ok {
			data = envelope
		}
	}

	payload := data
	if inner, ok := data["object"].(map[string]any); ok {
		payload = inner
	}

	return ParsedEvent{
		Kind:    classifyEventType(eventType),
		Type:    eventType,
		Payload: payload,
		Data:    data,
	}
}

// classifyEventType dispatches on case-insensitive substrings; first match wins.
func classifyEventType(eventType string) EventKind {
	lower := strings.ToLower(eventType)
	switch {
	case strings.Contains(lower, "call.summary"):
		return KindCallSummary
	case strings.Contains(lower, "call"):
		return KindCall
	case strings.Contains(lower, "message"), strings.Contains(lower, "conversation"):
		return KindConversation
	default:
		return KindUnknown
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
