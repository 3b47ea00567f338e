package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/testutil"
)

type serviceFixture struct {
	db       *sql.DB
	svc      *Service
	provider *fakeProvider
	clients  *store.ClientStore
	comms    *store.CommunicationStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	provider := newFakeProvider()
	clients := store.NewClientStore(db)
	comms := store.NewCommunicationStore(db)
	svc := New(clients, comms, provider, zerolog.Nop())
	return &serviceFixture{db: db, svc: svc, provider: provider, clients: clients, comms: comms}
}

func TestHandleWebhookCallSummary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.calls["c-42"] = &openphone.Call{
		ID:        "c-42",
		Direction: "incoming",
		StartedAt: "2026-08-28T14:00:00Z",
		Participants: []openphone.Participant{
			{Type: "user", Name: "Agent"},
			{Name: "Jane Doe", PhoneNumber: "+15551234567"},
		},
	}

	raw := []byte(`{
		"type": "call.summary.completed",
		"data": {"object": {"callId": "c-42", "summary": ["discussed estimate"], "nextSteps": ["send quote"]}}
	}`)
	f.svc.HandleWebhookEvent(ctx, raw)

	var commType, notes, clientID string
	err := f.db.QueryRow(`
		SELECT communication_type, notes, client_id FROM communications WHERE external_call_id = ?
	`, "c-42").Scan(&commType, &notes, &clientID)
	require.NoError(t, err, "expected one record keyed c-42")

	assert.Equal(t, "phone_call", commType)
	assert.Equal(t, "Summary:\n- discussed estimate\n\nNext Steps:\n- send quote", notes)

	// The contact was resolved into a newly created client.
	client, err := f.clients.FindByPhoneNumbers(ctx, []string{"+15551234567"})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, client.ID, clientID)
	assert.Equal(t, "Jane Doe", client.Name)
}

func TestHandleWebhookDuplicateDelivery(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.calls["c-7"] = &openphone.Call{
		ID:           "c-7",
		StartedAt:    "2026-08-28T09:00:00Z",
		Participants: []openphone.Participant{{Name: "Bob", PhoneNumber: "+15557654321"}},
	}

	raw := []byte(`{"type": "call.summary.completed", "data": {"object": {"callId": "c-7", "summary": ["short call"]}}}`)
	f.svc.HandleWebhookEvent(ctx, raw)
	f.svc.HandleWebhookEvent(ctx, raw)

	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM communications WHERE external_call_id = ?`, "c-7").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "duplicate delivery must not create a second record")
}

func TestHandleWebhookSummaryWithoutCallID(t *testing.T) {
	f := newServiceFixture(t)

	// Dropped with a warning; nothing stored, nothing panics.
	f.svc.HandleWebhookEvent(context.Background(), []byte(`{"type": "call.summary.completed", "data": {"object": {"summary": ["x"]}}}`))

	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM communications`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleWebhookUnknownType(t *testing.T) {
	f := newServiceFixture(t)

	f.svc.HandleWebhookEvent(context.Background(), []byte(`{"type": "contact.updated", "data": {"object": {"id": "x"}}}`))

	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM communications`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleWebhookMessageEvent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	raw := []byte(`{
		"type": "message.received",
		"data": {"object": {
			"conversationId": "conv-5",
			"text": "can we move to 3pm?",
			"from": "+15550002222",
			"createdAt": "2026-08-28T16:20:00Z"
		}}
	}`)
	f.svc.HandleWebhookEvent(ctx, raw)

	var commType, notes, date string
	err := f.db.QueryRow(`
		SELECT communication_type, notes, communication_date FROM communications WHERE external_conversation_id = ?
	`, "conv-5").Scan(&commType, &notes, &date)
	require.NoError(t, err, "expected one record keyed conv-5")
	assert.Equal(t, "sms", commType)
	assert.Equal(t, "can we move to 3pm?", notes)
	assert.Equal(t, "2026-08-28", date)

	client, err := f.clients.FindByPhoneNumbers(ctx, []string{"+15550002222"})
	require.NoError(t, err)
	require.NotNil(t, client, "sender resolved into a new client")
}

func TestSyncEmptyWindow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.phoneNumbers = []openphone.PhoneNumber{{ID: "pn-1", Number: "+15559990000"}}
	_, err := f.clients.CreateFromOpenPhoneContact(ctx, store.CreateClientInput{Name: "Jane Doe", Phone: "5551234567"})
	require.NoError(t, err)

	result, err := f.svc.SyncCommunications(ctx, Options{
		StartDate:       time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC),
		IncludeCalls:    true,
		IncludeMessages: true,
		PageSize:        100,
	})
	require.NoError(t, err)
	assert.Equal(t, SyncResult{}, result, "empty window yields all-zero counters")
}

func TestSyncCallsCreatesRecords(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.phoneNumbers = []openphone.PhoneNumber{{ID: "pn-1", Number: "+15559990000"}}
	client, err := f.clients.CreateFromOpenPhoneContact(ctx, store.CreateClientInput{Name: "Jane Doe", Phone: "5551234567"})
	require.NoError(t, err)

	f.provider.callPages[""] = &openphone.CallPage{
		Data: []openphone.Call{{
			ID:           "c-100",
			Direction:    "outgoing",
			StartedAt:    "2026-08-28T10:00:00Z",
			Participants: []openphone.Participant{{Name: "Jane Doe", PhoneNumber: "+15551234567"}},
		}},
	}

	result, err := f.svc.SyncCommunications(ctx, Options{IncludeCalls: true, PageSize: 50})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CallsProcessed)
	assert.Equal(t, 1, result.CommunicationsCreated)
	assert.Zero(t, result.CommunicationsUpdated)
	assert.Zero(t, result.ClientsCreated, "existing client matched by phone")

	n, err := f.comms.CountByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Second run over the same window updates rather than duplicates.
	result, err = f.svc.SyncCommunications(ctx, Options{IncludeCalls: true, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CommunicationsUpdated)
	assert.Zero(t, result.CommunicationsCreated)
}

func TestSyncCallPairFailureDoesNotAbort(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.phoneNumbers = []openphone.PhoneNumber{{ID: "pn-1", Number: "+15559990000"}}
	_, err := f.clients.CreateFromOpenPhoneContact(ctx, store.CreateClientInput{Name: "Jane Doe", Phone: "5551234567"})
	require.NoError(t, err)

	f.provider.listCallsErr = assert.AnError
	f.provider.convPages[""] = &openphone.ConversationPage{
		Data: []openphone.Conversation{{
			ID:           "conv-9",
			Type:         "sms",
			UpdatedAt:    "2026-08-28T12:00:00Z",
			Participants: []openphone.Participant{{Name: "Jane Doe", PhoneNumber: "+15551234567"}},
		}},
	}

	result, err := f.svc.SyncCommunications(ctx, Options{IncludeCalls: true, IncludeMessages: true, PageSize: 100})
	require.NoError(t, err, "pair failures are logged, not raised")

	assert.Zero(t, result.CallsProcessed)
	assert.Equal(t, 1, result.ConversationsProcessed)
	assert.Equal(t, 1, result.CommunicationsCreated)
}

func TestSyncConversationPaging(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.provider.phoneNumbers = []openphone.PhoneNumber{{ID: "pn-1", Number: "+15559990000"}}

	f.provider.convPages[""] = &openphone.ConversationPage{
		Data: []openphone.Conversation{{
			ID:           "conv-1",
			UpdatedAt:    "2026-08-28T08:00:00Z",
			Participants: []openphone.Participant{{Name: "Ann", PhoneNumber: "+15550001111"}},
		}},
		NextPageToken: "page-2",
	}
	f.provider.convPages["page-2"] = &openphone.ConversationPage{
		Data: []openphone.Conversation{{
			ID:           "conv-2",
			UpdatedAt:    "2026-08-28T09:00:00Z",
			Participants: []openphone.Participant{{Name: "Ben", PhoneNumber: "+15550002222"}},
		}},
	}

	result, err := f.svc.SyncCommunications(ctx, Options{IncludeMessages: true, PageSize: 100})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ConversationsProcessed)
	assert.Equal(t, 2, result.CommunicationsCreated)
	assert.Equal(t, 2, result.ClientsCreated)
	assert.Len(t, f.provider.listConversationsRequests, 2)
	assert.Equal(t, "page-2", f.provider.listConversationsRequests[1].PageToken)
}
