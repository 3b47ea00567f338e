package sync

import (
	"context"
	"time"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/phone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
)

const clientBatchSize = 50

// window is the [start, end) time range of one bulk sync.
type window struct {
	start time.Time
	end   time.Time
}

// syncCalls walks all clients in batches and pages through calls for every
// (provider number, client phone) pair. Provider calls run sequentially to
// stay inside the provider's rate limits.
func (s *Service) syncCalls(ctx context.Context, win window, pageSize int, result *SyncResult) error {
	numbers, err := s.providerNumbers(ctx)
	if err != nil {
		return err
	}
	if len(numbers) == 0 {
		return nil
	}

	return s.clients.BatchProcess(ctx, clientBatchSize, func(batch []store.Client) error {
		for i := range batch {
			clientPhone := phone.Normalize(batch[i].Phone)
			if clientPhone == "" {
				continue
			}
			for _, number := range numbers {
				s.syncCallPair(ctx, number.ID, clientPhone, win, pageSize, result)
			}
		}
		return nil
	})
}

// syncCallPair pages through one (phoneNumberId, clientPhone) pair. A
// provider error abandons this pair only; sibling pairs still run.
func (s *Service) syncCallPair(ctx context.Context, phoneNumberID, clientPhone string, win window, pageSize int, result *SyncResult) {
	pageToken := ""
	for {
		page, err := s.provider.ListCalls(ctx, openphone.ListCallsParams{
			PhoneNumberID: phoneNumberID,
			Participants:  []string{clientPhone},
			CreatedAfter:  win.start,
			CreatedBefore: win.end,
			MaxResults:    openphone.ClampPageSize(pageSize),
			PageToken:     pageToken,
		})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("phone_number_id", phoneNumberID).
				Str("participant", clientPhone).
				Msg("list calls failed, abandoning pair")
			return
		}

		for i := range page.Data {
			s.processCall(ctx, &page.Data[i], result)
		}

		if page.NextPageToken == "" {
			return
		}
		pageToken = page.NextPageToken
	}
}

// syncConversations chunks the provider phone-number ids into groups the
// provider accepts and pages through each chunk. A provider error abandons
// that chunk only.
func (s *Service) syncConversations(ctx context.Context, win window, pageSize int, result *SyncResult) error {
	numbers, err := s.providerNumbers(ctx)
	if err != nil {
		return err
	}

	var ids []string
	for _, n := range numbers {
		ids = append(ids, n.ID)
	}

	for _, chunk := range phone.ChunkStrings(ids, openphone.MaxConversationBatch()) {
		pageToken := ""
		for {
			page, err := s.provider.ListConversations(ctx, openphone.ListConversationsParams{
				PhoneNumbers:    chunk,
				UpdatedAfter:    win.start,
				UpdatedBefore:   win.end,
				MaxResults:      openphone.ClampPageSize(pageSize),
				PageToken:       pageToken,
				ExcludeInactive: true,
			})
			if err != nil {
				s.logger.Warn().Err(err).
					Int("chunk_size", len(chunk)).
					Msg("list conversations failed, abandoning chunk")
				break
			}

			for i := range page.Data {
				s.processConversation(ctx, &page.Data[i], result)
			}

			if page.NextPageToken == "" {
				break
			}
			pageToken = page.NextPageToken
		}
	}
	return nil
}

// processCall resolves the call's contact and upserts one record. A failure
// here drops this call only.
func (s *Service) processCall(ctx context.Context, call *openphone.Call, result *SyncResult) {
	if call.ID == "" {
		s.logger.Warn().Msg("skipping call without id")
		return
	}
	result.CallsProcessed++

	contact := ExtractContact(call.Contact, call.Participants)
	client, created, err := s.resolver.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", call.ID).Msg("resolve call contact failed")
		return
	}
	if created {
		result.ClientsCreated++
	}

	res, err := s.comms.Upsert(ctx, BuildCallRecord(client, call))
	if err != nil {
		s.logger.Warn().Err(err).Str("call_id", call.ID).Msg("upsert call record failed")
		return
	}
	result.tally(res)
}

// processConversation resolves the conversation's contact and upserts one
// record. A failure here drops this conversation only.
func (s *Service) processConversation(ctx context.Context, conv *openphone.Conversation, result *SyncResult) {
	if conv.ID == "" {
		s.logger.Warn().Msg("skipping conversation without id")
		return
	}
	result.ConversationsProcessed++

	contact := ExtractContact(conv.Contact, conv.Participants)
	client, created, err := s.resolver.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("resolve conversation contact failed")
		return
	}
	if created {
		result.ClientsCreated++
	}

	res, err := s.comms.Upsert(ctx, BuildConversationRecord(client, conv))
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("upsert conversation record failed")
		return
	}
	result.tally(res)
}
