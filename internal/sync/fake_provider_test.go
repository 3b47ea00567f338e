package sync

import (
	"context"
	"errors"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
)

// fakeProvider serves canned pages keyed by page token.
type fakeProvider struct {
	phoneNumbers  []openphone.PhoneNumber
	callPages     map[string]*openphone.CallPage
	convPages     map[string]*openphone.ConversationPage
	calls         map[string]*openphone.Call
	contacts      map[string]*openphone.Contact
	searchByPhone map[string][]openphone.Contact

	listCallsErr         error
	listConversationsErr error

	listCallsRequests         []openphone.ListCallsParams
	listConversationsRequests []openphone.ListConversationsParams
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		callPages:     map[string]*openphone.CallPage{},
		convPages:     map[string]*openphone.ConversationPage{},
		calls:         map[string]*openphone.Call{},
		contacts:      map[string]*openphone.Contact{},
		searchByPhone: map[string][]openphone.Contact{},
	}
}

func (f *fakeProvider) ListCalls(ctx context.Context, params openphone.ListCallsParams) (*openphone.CallPage, error) {
	f.listCallsRequests = append(f.listCallsRequests, params)
	if f.listCallsErr != nil {
		return nil, f.listCallsErr
	}
	if page, ok := f.callPages[params.PageToken]; ok {
		return page, nil
	}
	return &openphone.CallPage{}, nil
}

func (f *fakeProvider) ListConversations(ctx context.Context, params openphone.ListConversationsParams) (*openphone.ConversationPage, error) {
	f.listConversationsRequests = append(f.listConversationsRequests, params)
	if f.listConversationsErr != nil {
		return nil, f.listConversationsErr
	}
	if page, ok := f.convPages[params.PageToken]; ok {
		return page, nil
	}
	return &openphone.ConversationPage{}, nil
}

func (f *fakeProvider) GetCall(ctx context.Context, id string) (*openphone.Call, error) {
	call, ok := f.calls[id]
	if !ok {
		return nil, errors.New("call not found")
	}
	return call, nil
}

func (f *fakeProvider) GetContact(ctx context.Context, id string) (*openphone.Contact, error) {
	contact, ok := f.contacts[id]
	if !ok {
		return nil, errors.New("contact not found")
	}
	return contact, nil
}

func (f *fakeProvider) SearchContacts(ctx context.Context, phoneNumber string, limit int) ([]openphone.Contact, error) {
	return f.searchByPhone[phoneNumber], nil
}

func (f *fakeProvider) ListPhoneNumbers(ctx context.Context) ([]openphone.PhoneNumber, error) {
	return f.phoneNumbers, nil
}
