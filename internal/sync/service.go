package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
)

const defaultLookback = 24 * time.Hour

// Provider is the telephony API surface the sync engine consumes.
type Provider interface {
	ListCalls(ctx context.Context, params openphone.ListCallsParams) (*openphone.CallPage, error)
	ListConversations(ctx context.Context, params openphone.ListConversationsParams) (*openphone.ConversationPage, error)
	GetCall(ctx context.Context, id string) (*openphone.Call, error)
	GetContact(ctx context.Context, id string) (*openphone.Contact, error)
	SearchContacts(ctx context.Context, phoneNumber string, limit int) ([]openphone.Contact, error)
	ListPhoneNumbers(ctx context.Context) ([]openphone.PhoneNumber, error)
}

// Options controls one bulk sync invocation.
type Options struct {
	StartDate       time.Time
	EndDate         time.Time
	IncludeCalls    bool
	IncludeMessages bool
	PageSize        int
}

// DefaultOptions is a 24-hour lookback covering both calls and messages.
func DefaultOptions() Options {
	return Options{
		IncludeCalls:    true,
		IncludeMessages: true,
		PageSize:        100,
	}
}

// SyncResult accumulates counters for one sync invocation.
type SyncResult struct {
	CallsProcessed         int `json:"callsProcessed"`
	ConversationsProcessed int `json:"conversationsProcessed"`
	CommunicationsCreated  int `json:"communicationsCreated"`
	CommunicationsUpdated  int `json:"communicationsUpdated"`
	ClientsCreated         int `json:"clientsCreated"`
}

func (r *SyncResult) tally(res store.UpsertResult) {
	switch res.Action {
	case store.ActionCreated:
		r.CommunicationsCreated++
	case store.ActionUpdated:
		r.CommunicationsUpdated++
	}
}

// Service is the communications sync orchestrator. Construct one at process
// start and pass it explicitly; it holds no hidden global state.
type Service struct {
	clients  *store.ClientStore
	comms    *store.CommunicationStore
	provider Provider
	resolver *Resolver
	logger   zerolog.Logger

	// Memoized provider numbers; call-scoped lifetime, refreshed only via
	// RefreshPhoneNumbers.
	numbersLoaded bool
	numbers       []openphone.PhoneNumber
}

// New wires a sync service over its collaborators.
func New(clients *store.ClientStore, comms *store.CommunicationStore, provider Provider, logger zerolog.Logger) *Service {
	return &Service{
		clients:  clients,
		comms:    comms,
		provider: provider,
		resolver: NewResolver(clients, provider, logger),
		logger:   logger,
	}
}

func (s *Service) providerNumbers(ctx context.Context) ([]openphone.PhoneNumber, error) {
	if s.numbersLoaded {
		return s.numbers, nil
	}
	numbers, err := s.provider.ListPhoneNumbers(ctx)
	if err != nil {
		return nil, err
	}
	s.numbers = numbers
	s.numbersLoaded = true
	return numbers, nil
}

// RefreshPhoneNumbers drops the memoized provider number list and re-fetches.
func (s *Service) RefreshPhoneNumbers(ctx context.Context) error {
	s.numbersLoaded = false
	s.numbers = nil
	_, err := s.providerNumbers(ctx)
	return err
}

// SyncCommunications runs one bulk sync over the configured window and
// returns the accumulated counters. Per-pair and per-chunk provider failures
// are logged and skipped; only infrastructure failures surface as errors.
func (s *Service) SyncCommunications(ctx context.Context, opts Options) (SyncResult, error) {
	win := window{start: opts.StartDate, end: opts.EndDate}
	if win.end.IsZero() {
		win.end = time.Now().UTC()
	}
	if win.start.IsZero() {
		win.start = win.end.Add(-defaultLookback)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var result SyncResult

	if opts.IncludeCalls {
		if err := s.syncCalls(ctx, win, pageSize, &result); err != nil {
			return result, err
		}
	}
	if opts.IncludeMessages {
		if err := s.syncConversations(ctx, win, pageSize, &result); err != nil {
			return result, err
		}
	}

	s.logger.Info().
		Int("calls", result.CallsProcessed).
		Int("conversations", result.ConversationsProcessed).
		Int("created", result.CommunicationsCreated).
		Int("updated", result.CommunicationsUpdated).
		Int("clients_created", result.ClientsCreated).
		Msg("sync finished")

	return result, nil
}

// HandleWebhookEvent processes one provider webhook event. Errors are logged,
// never returned; the upsert's external-id key makes duplicate deliveries
// harmless.
func (s *Service) HandleWebhookEvent(ctx context.Context, raw []byte) {
	event, err := ParseEvent(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping malformed webhook event")
		return
	}

	switch event.Kind {
	case KindCallSummary:
		s.handleCallSummary(ctx, event)
	case KindCall:
		s.handleCallEvent(ctx, event)
	case KindConversation:
		s.handleConversationEvent(ctx, event)
	default:
		s.logger.Info().Str("event_type", event.Type).Msg("ignoring unknown webhook event type")
	}
}

// handleCallSummary enriches a summary event with the full call, then upserts
// the corresponding record with the rendered summary as notes.
func (s *Service) handleCallSummary(ctx context.Context, event ParsedEvent) {
	callID := firstString(event.Payload, "callId", "call_id")
	if callID == "" {
		s.logger.Warn().Str("event_type", event.Type).Msg("dropping call summary event without call id")
		return
	}

	call, err := s.provider.GetCall(ctx, callID)
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", callID).Msg("fetch call for summary failed")
		return
	}
	if call.ID == "" {
		call.ID = callID
	}

	var payload CallSummaryPayload
	if err := decodePayload(event.Payload, &payload); err != nil {
		s.logger.Warn().Err(err).Str("call_id", callID).Msg("decode call summary payload failed")
	}

	contact := ExtractContact(call.Contact, call.Participants)
	client, created, err := s.resolver.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", callID).Msg("resolve call summary contact failed")
		return
	}

	record := BuildCallRecord(client, call)
	if notes := FormatCallSummaryPayload(payload); notes != "" {
		record.Notes = notes
	}

	res, err := s.comms.Upsert(ctx, record)
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", callID).Msg("upsert call summary record failed")
		return
	}
	s.logWebhookUpsert(res, created, "call.summary")
}

func (s *Service) handleCallEvent(ctx context.Context, event ParsedEvent) {
	var call openphone.Call
	if err := decodePayload(event.Payload, &call); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("decode call payload failed")
		return
	}
	if call.ID == "" {
		s.logger.Warn().Str("event_type", event.Type).Msg("dropping call event without id")
		return
	}

	contact := ExtractContact(call.Contact, call.Participants)
	client, created, err := s.resolver.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", call.ID).Msg("resolve call contact failed")
		return
	}

	res, err := s.comms.Upsert(ctx, BuildCallRecord(client, &call))
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", call.ID).Msg("upsert call record failed")
		return
	}
	s.logWebhookUpsert(res, created, event.Type)
}

// handleConversationEvent accepts both conversation-shaped and
// message-shaped payloads; messages are lifted into their conversation.
func (s *Service) handleConversationEvent(ctx context.Context, event ParsedEvent) {
	var conv openphone.Conversation
	if err := decodePayload(event.Payload, &conv); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("decode conversation payload failed")
		return
	}

	// A message-shaped payload carries its own id; the conversation id it
	// belongs to is the upsert key, and the message itself becomes the
	// conversation's last message.
	if cid := firstString(event.Payload, "conversationId", "conversation_id"); cid != "" {
		conv = openphone.Conversation{
			ID:          cid,
			LastMessage: event.Payload,
			UpdatedAt:   stringField(event.Payload, "createdAt"),
		}
	}
	if conv.ID == "" {
		s.logger.Warn().Str("event_type", event.Type).Msg("dropping conversation event without id")
		return
	}

	if conv.Contact == nil && len(conv.Participants) == 0 {
		if counterparty := messageCounterparty(event.Payload); counterparty != "" {
			conv.Participants = []openphone.Participant{{PhoneNumber: counterparty}}
		}
	}

	contact := ExtractContact(conv.Contact, conv.Participants)
	client, created, err := s.resolver.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("resolve conversation contact failed")
		return
	}

	res, err := s.comms.Upsert(ctx, BuildConversationRecord(client, &conv))
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("upsert conversation record failed")
		return
	}
	s.logWebhookUpsert(res, created, event.Type)
}

func (s *Service) logWebhookUpsert(res store.UpsertResult, clientCreated bool, eventType string) {
	s.logger.Info().
		Str("event_type", eventType).
		Str("action", res.Action).
		Bool("client_created", clientCreated).
		Msg("webhook event processed")
}

// messageCounterparty picks the external phone number out of a
// message-shaped payload: "to" for outgoing, "from" otherwise.
func messageCounterparty(payload map[string]any) string {
	if stringField(payload, "direction") == "outgoing" {
		if to := stringField(payload, "to"); to != "" {
			return to
		}
		if list, ok := payload["to"].([]any); ok && len(list) > 0 {
			if s, ok := list[0].(string); ok {
				return s
			}
		}
		return ""
	}
	return stringField(payload, "from")
}

func decodePayload(payload map[string]any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
