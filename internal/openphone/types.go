package openphone

import (
	"encoding/json"
	"time"
)

// Participant is a party on a call or conversation. Type is "user" for
// workspace members; anything else is an external contact.
type Participant struct {
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ContactID   string `json:"contactId,omitempty"`
	Email       string `json:"email,omitempty"`
}

// UnmarshalJSON accepts both participant objects and the bare phone-number
// strings some endpoints return.
func (p *Participant) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Participant{PhoneNumber: s}
		return nil
	}
	type participant Participant
	var v participant
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Participant(v)
	return nil
}

// Call is a provider call record. Summary and Metadata are kept loosely typed
// because the provider has shipped several shapes for them.
type Call struct {
	ID            string         `json:"id"`
	PhoneNumberID string         `json:"phoneNumberId,omitempty"`
	Direction     string         `json:"direction,omitempty"`
	Participants  []Participant  `json:"participants,omitempty"`
	Contact       *Participant   `json:"contact,omitempty"`
	StartedAt     string         `json:"startedAt,omitempty"`
	EndedAt       string         `json:"endedAt,omitempty"`
	Summary       any            `json:"summary,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

// Conversation is a provider message thread. LastMessage is loosely typed for
// the same reason as Call.Summary.
type Conversation struct {
	ID             string         `json:"id"`
	Type           string         `json:"type,omitempty"`
	Name           string         `json:"name,omitempty"`
	PhoneNumberID  string         `json:"phoneNumberId,omitempty"`
	Participants   []Participant  `json:"participants,omitempty"`
	Contact        *Participant   `json:"contact,omitempty"`
	LastMessage    map[string]any `json:"lastMessage,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
	LastActivityAt string         `json:"lastActivityAt,omitempty"`
}

// ContactField is a labeled value on a provider contact (phone or email).
type ContactField struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Contact is a full provider contact record.
type Contact struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	CompanyName  string         `json:"companyName,omitempty"`
	PhoneNumbers []ContactField `json:"phoneNumbers,omitempty"`
	Emails       []ContactField `json:"emails,omitempty"`
}

// PhoneNumber is a provider-owned phone number.
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

// ListCallsParams selects calls for one provider number and one participant.
type ListCallsParams struct {
	PhoneNumberID string
	Participants  []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	MaxResults    int
	PageToken     string
}

// ListConversationsParams selects conversations for a set of provider numbers.
type ListConversationsParams struct {
	PhoneNumbers    []string
	UpdatedAfter    time.Time
	UpdatedBefore   time.Time
	MaxResults      int
	PageToken       string
	ExcludeInactive bool
}

// CallPage is one page of calls plus the cursor for the next page.
type CallPage struct {
	Data          []Call `json:"data"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// ConversationPage is one page of conversations plus the next-page cursor.
type ConversationPage struct {
	Data          []Conversation `json:"data"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}
