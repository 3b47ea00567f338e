package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/openphone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/phone"
	"github.com/christiantansastro/ai-chatbot-sub001/internal/store"
)

// ExternalContact is a loosely identified person from a provider payload.
// All fields are optional.
type ExternalContact struct {
	Name      string
	Phone     string
	ContactID string
	Email     string
}

// ExtractContact pulls the external party out of a call or conversation.
// An explicit contact wins; otherwise the first non-user participant, falling
// back to the first participant of any kind.
func ExtractContact(contact *openphone.Participant, participants []openphone.Participant) ExternalContact {
	picked := contact
	if picked == nil {
		for i := range participants {
			if !strings.EqualFold(participants[i].Type, "user") {
				picked = &participants[i]
				break
			}
		}
	}
	if picked == nil && len(participants) > 0 {
		picked = &participants[0]
	}
	if picked == nil {
		return ExternalContact{}
	}
	return ExternalContact{
		Name:      strings.TrimSpace(picked.Name),
		Phone:     strings.TrimSpace(picked.PhoneNumber),
		ContactID: strings.TrimSpace(picked.ContactID),
		Email:     strings.TrimSpace(picked.Email),
	}
}

// contactProvider is the slice of the provider API the resolver needs.
type contactProvider interface {
	GetContact(ctx context.Context, id string) (*openphone.Contact, error)
	SearchContacts(ctx context.Context, phoneNumber string, limit int) ([]openphone.Contact, error)
}

// Resolver maps external contacts to internal clients, creating clients when
// no match exists.
type Resolver struct {
	clients  *store.ClientStore
	provider contactProvider
	logger   zerolog.Logger
}

// NewResolver wires a resolver over the client store and provider API.
func NewResolver(clients *store.ClientStore, provider contactProvider, logger zerolog.Logger) *Resolver {
	return &Resolver{clients: clients, provider: provider, logger: logger}
}

// Resolve finds or creates the internal client for an external contact.
// Lookup order: provider contact id, exact normalized name, normalized phone.
// A client found without a contact id gets the inbound id attached.
func (r *Resolver) Resolve(ctx context.Context, contact ExternalContact) (*store.Client, bool, error) {
	if contact.ContactID != "" {
		client, err := r.clients.FindByOpenPhoneContactID(ctx, contact.ContactID)
		if err != nil {
			return nil, false, err
		}
		if client != nil {
			return client, false, nil
		}
	}

	var client *store.Client
	if contact.Name != "" {
		found, err := r.clients.FindByName(ctx, contact.Name)
		if err != nil {
			return nil, false, err
		}
		client = found
	}
	if client == nil && contact.Phone != "" {
		found, err := r.clients.FindByPhoneNumbers(ctx, []string{contact.Phone})
		if err != nil {
			return nil, false, err
		}
		client = found
	}

	if client != nil {
		if client.OpenPhoneContactID == "" && contact.ContactID != "" {
			if err := r.clients.AttachOpenPhoneContactID(ctx, client.ID, contact.ContactID); err != nil {
				return nil, false, err
			}
			client.OpenPhoneContactID = contact.ContactID
		}
		return client, false, nil
	}

	enriched := r.enrich(ctx, contact)
	created, err := r.clients.CreateFromOpenPhoneContact(ctx, store.CreateClientInput{
		Name:               enriched.Name,
		Phone:              enriched.Phone,
		Email:              enriched.Email,
		OpenPhoneContactID: enriched.ContactID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create client: %w", err)
	}
	return created, true, nil
}

// enrich fills in missing contact fields from the provider. Provider failures
// only reduce the quality of the created client, so they are logged and the
// original descriptor is kept.
func (r *Resolver) enrich(ctx context.Context, contact ExternalContact) ExternalContact {
	if contact.ContactID != "" {
		full, err := r.provider.GetContact(ctx, contact.ContactID)
		if err != nil {
			r.logger.Warn().Err(err).Str("contact_id", contact.ContactID).Msg("fetch provider contact failed")
			return contact
		}
		return mergeContact(contact, full)
	}

	if contact.Phone != "" {
		results, err := r.provider.SearchContacts(ctx, contact.Phone, 10)
		if err != nil {
			r.logger.Warn().Err(err).Str("phone", contact.Phone).Msg("search provider contacts failed")
			return contact
		}
		query := phone.Normalize(contact.Phone)
		for i := range results {
			if contactHasPhone(&results[i], query) {
				merged := mergeContact(contact, &results[i])
				merged.ContactID = results[i].ID
				return merged
			}
		}
	}

	return contact
}

// mergeContact overlays provider contact data onto the descriptor, keeping
// descriptor fields that are already set.
func mergeContact(contact ExternalContact, full *openphone.Contact) ExternalContact {
	merged := contact
	if name := contactDisplayName(full); name != "" {
		merged.Name = name
	}
	if merged.Email == "" && len(full.Emails) > 0 {
		merged.Email = strings.TrimSpace(full.Emails[0].Value)
	}
	if merged.Phone == "" && len(full.PhoneNumbers) > 0 {
		merged.Phone = strings.TrimSpace(full.PhoneNumbers[0].Value)
	}
	if merged.ContactID == "" {
		merged.ContactID = full.ID
	}
	return merged
}

// contactDisplayName is first+last, falling back to the company name.
func contactDisplayName(c *openphone.Contact) string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(c.CompanyName)
}

func contactHasPhone(c *openphone.Contact, normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, p := range c.PhoneNumbers {
		if phone.Normalize(p.Value) == normalized {
			return true
		}
	}
	return false
}
