package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/christiantansastro/ai-chatbot-sub001/internal/testutil"
)

func TestCreateAndFindClient(t *testing.T) {
	db := testutil.OpenTestDB(t)
	s := NewClientStore(db)
	ctx := context.Background()

	client, err := s.CreateFromOpenPhoneContact(ctx, CreateClientInput{
		Name:               "Jane Doe",
		Phone:              "(555) 123-4567",
		Email:              "jane@example.com",
		OpenPhoneContactID: "op-contact-1",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.ID == "" {
		t.Fatal("created client has no id")
	}
	if client.Phone != "+15551234567" {
		t.Errorf("phone not normalized: %q", client.Phone)
	}

	byContact, err := s.FindByOpenPhoneContactID(ctx, "op-contact-1")
	if err != nil {
		t.Fatalf("find by contact id: %v", err)
	}
	if byContact == nil || byContact.ID != client.ID {
		t.Errorf("find by contact id returned %+v, want id %s", byContact, client.ID)
	}

	byName, err := s.FindByName(ctx, "  jane   DOE ")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if byName == nil || byName.ID != client.ID {
		t.Errorf("find by normalized name returned %+v, want id %s", byName, client.ID)
	}

	byPhone, err := s.FindByPhoneNumbers(ctx, []string{"5551234567"})
	if err != nil {
		t.Fatalf("find by phone: %v", err)
	}
	if byPhone == nil || byPhone.ID != client.ID {
		t.Errorf("find by phone returned %+v, want id %s", byPhone, client.ID)
	}

	missing, err := s.FindByOpenPhoneContactID(ctx, "nope")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown contact id, got %+v", missing)
	}
}

func TestCreateClientNameFallback(t *testing.T) {
	db := testutil.OpenTestDB(t)
	s := NewClientStore(db)
	ctx := context.Background()

	client, err := s.CreateFromOpenPhoneContact(ctx, CreateClientInput{Phone: "5550001111"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.Name != "+15550001111" {
		t.Errorf("expected phone fallback name, got %q", client.Name)
	}

	anon, err := s.CreateFromOpenPhoneContact(ctx, CreateClientInput{})
	if err != nil {
		t.Fatalf("create anon client: %v", err)
	}
	if anon.Name != "Unknown Contact" {
		t.Errorf("expected Unknown Contact fallback, got %q", anon.Name)
	}
}

func TestAttachOpenPhoneContactID(t *testing.T) {
	db := testutil.OpenTestDB(t)
	s := NewClientStore(db)
	ctx := context.Background()

	client, err := s.CreateFromOpenPhoneContact(ctx, CreateClientInput{Name: "Bob", Phone: "5557654321"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.OpenPhoneContactID != "" {
		t.Fatalf("expected no contact id, got %q", client.OpenPhoneContactID)
	}

	if err := s.AttachOpenPhoneContactID(ctx, client.ID, "op-late-link"); err != nil {
		t.Fatalf("attach contact id: %v", err)
	}

	linked, err := s.FindByOpenPhoneContactID(ctx, "op-late-link")
	if err != nil {
		t.Fatalf("find by contact id: %v", err)
	}
	if linked == nil || linked.ID != client.ID {
		t.Errorf("expected client %s linked, got %+v", client.ID, linked)
	}
}

func TestBatchProcess(t *testing.T) {
	db := testutil.OpenTestDB(t)
	s := NewClientStore(db)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := s.CreateFromOpenPhoneContact(ctx, CreateClientInput{
			Name:  fmt.Sprintf("Client %d", i),
			Phone: fmt.Sprintf("555000%04d", i),
		})
		if err != nil {
			t.Fatalf("create client %d: %v", i, err)
		}
	}

	var batches [][]Client
	err := s.BatchProcess(ctx, 3, func(batch []Client) error {
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		t.Fatalf("batch process: %v", err)
	}

	total := 0
	seen := map[string]bool{}
	for i, b := range batches {
		if len(b) > 3 {
			t.Errorf("batch %d has %d clients, want <= 3", i, len(b))
		}
		for _, c := range b {
			if seen[c.ID] {
				t.Errorf("client %s seen twice", c.ID)
			}
			seen[c.ID] = true
			total++
		}
	}
	if total != 7 {
		t.Errorf("processed %d clients, want 7", total)
	}
}
