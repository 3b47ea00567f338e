package sync

import (
	"strings"
	"time"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
)

const recordSource = "openphone"

// ToDateOnly converts an RFC 3339 timestamp to YYYY-MM-DD (UTC). A value that
// does not parse falls back to today so one malformed upstream timestamp
// cannot fail the whole sync.
func ToDateOnly(iso string) string {
	iso = strings.TrimSpace(iso)
	if iso != "" {
		if ts, err := time.Parse(time.RFC3339, iso); err == nil {
			return ts.UTC().Format("2006-01-02")
		}
		if ts, err := time.Parse("2006-01-02", iso); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return time.Now().UTC().Format("2006-01-02")
}

// CallSummaryPayload is the body of a call.summary webhook event.
type CallSummaryPayload struct {
	Summary   []string `json:"summary"`
	NextSteps []string `json:"nextSteps"`
}

// FormatCallSummaryPayload renders a call summary as note text. Empty
// sections are omitted; when both are empty it returns "".
func FormatCallSummaryPayload(payload CallSummaryPayload) string {
	var sections []string
	if len(payload.Summary) > 0 {
		sections = append(sections, "Summary:\n- "+strings.Join(payload.Summary, "\n- "))
	}
	if len(payload.NextSteps) > 0 {
		sections = append(sections, "Next Steps:\n- "+strings.Join(payload.NextSteps, "\n- "))
	}
	return strings.Join(sections, "\n\n")
}

// BuildCallRecord maps a provider call onto the canonical communication input.
func BuildCallRecord(client *store.Client, call *openphone.Call) store.CommunicationInput {
	eventTime := call.StartedAt
	if eventTime == "" {
		eventTime = call.EndedAt
	}

	notes := callSummaryText(call)
	if notes == "" {
		direction := "from"
		if strings.EqualFold(call.Direction, "outgoing") {
			direction = "to"
		}
		notes = "Phone call " + direction + " " + client.Name
	}

	return store.CommunicationInput{
		ClientID:               client.ID,
		ClientName:             client.Name,
		Date:                   ToDateOnly(eventTime),
		Type:                   store.TypePhoneCall,
		Subject:                "Phone call",
		Notes:                  notes,
		Source:                 recordSource,
		ExternalCallID:         call.ID,
		ExternalEventTimestamp: eventTime,
	}
}

// BuildConversationRecord maps a provider conversation onto the canonical
// communication input.
func BuildConversationRecord(client *store.Client, conv *openphone.Conversation) store.CommunicationInput {
	eventTime := lastMessageTimestamp(conv)
	if eventTime == "" {
		eventTime = conv.UpdatedAt
	}

	subject := strings.TrimSpace(conv.Name)
	if subject == "" {
		subject = "Conversation"
	}

	notes := conversationMessageText(conv)
	if notes == "" && strings.TrimSpace(conv.Name) != "" {
		notes = strings.TrimSpace(conv.Name)
	}
	if notes == "" {
		notes = "Conversation with " + client.Name
	}

	return store.CommunicationInput{
		ClientID:               client.ID,
		ClientName:             client.Name,
		Date:                   ToDateOnly(eventTime),
		Type:                   MapConversationType(conv.Type),
		Subject:                subject,
		Notes:                  notes,
		Source:                 recordSource,
		ExternalConversationID: conv.ID,
		ExternalEventTimestamp: eventTime,
	}
}

// MapConversationType maps a provider conversation type onto the stored
// communication type. Anything unrecognized is treated as SMS.
func MapConversationType(t string) store.CommunicationType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "email":
		return store.TypeEmail
	case "phone", "call":
		return store.TypePhoneCall
	default:
		return store.TypeSMS
	}
}

// textExtractor pulls a candidate string out of a loosely shaped payload.
type textExtractor func(map[string]any) string

// firstText runs extractors in priority order, returning the first hit.
func firstText(m map[string]any, extractors []textExtractor) string {
	if m == nil {
		return ""
	}
	for _, extract := range extractors {
		if s := strings.TrimSpace(extract(m)); s != "" {
			return s
		}
	}
	return ""
}

func field(key string) textExtractor {
	return func(m map[string]any) string {
		s, _ := m[key].(string)
		return s
	}
}

// contentArrayText handles the array-of-content-blocks message shape:
// content: [{type: "text", text: "..."}].
func contentArrayText(m map[string]any) string {
	blocks, ok := m["content"].([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := block["text"].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n")
}

var messageTextExtractors = []textExtractor{
	field("text"),
	field("body"),
	field("message"),
	field("preview"),
	field("summary"),
	field("content"),
	contentArrayText,
}

// callSummaryText extracts note text from a call across the shapes the
// provider has shipped, in priority order.
func callSummaryText(call *openphone.Call) string {
	switch summary := call.Summary.(type) {
	case string:
		if s := strings.TrimSpace(summary); s != "" {
			return s
		}
	case map[string]any:
		if s := firstText(summary, []textExtractor{field("text"), field("content")}); s != "" {
			return s
		}
	}
	if s := firstText(call.Metadata, []textExtractor{field("summary"), field("callSummary")}); s != "" {
		return s
	}
	return strings.TrimSpace(call.Notes)
}

// conversationMessageText extracts the last-message text of a conversation.
func conversationMessageText(conv *openphone.Conversation) string {
	return firstText(conv.LastMessage, messageTextExtractors)
}

func lastMessageTimestamp(conv *openphone.Conversation) string {
	if ts := firstText(conv.LastMessage, []textExtractor{field("createdAt"), field("timestamp")}); ts != "" {
		return ts
	}
	return conv.LastActivityAt
}
