// Package openphone is a minimal HTTP client for the OpenPhone REST API,
// covering the endpoints the communications sync needs.
package openphone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.openphone.com/v1"
	requestTimeout = 30 * time.Second

	// Provider caps.
	maxPageSize           = 100
	maxConversationBatch  = 50
	defaultContactResults = 10
)

// Client talks to the OpenPhone API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates an API client. baseURL may be empty to use the default.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// ClampPageSize bounds a requested page size to the provider's 1..100 range.
func ClampPageSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// MaxConversationBatch is the largest phone-number set one conversations
// request accepts.
func MaxConversationBatch() int { return maxConversationBatch }

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, truncate(body, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// ListCalls returns one page of calls for a provider number and participant set.
func (c *Client) ListCalls(ctx context.Context, params ListCallsParams) (*CallPage, error) {
	q := url.Values{}
	q.Set("phoneNumberId", params.PhoneNumberID)
	for _, p := range params.Participants {
		q.Add("participants", p)
	}
	if !params.CreatedAfter.IsZero() {
		q.Set("createdAfter", params.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !params.CreatedBefore.IsZero() {
		q.Set("createdBefore", params.CreatedBefore.UTC().Format(time.RFC3339))
	}
	q.Set("maxResults", strconv.Itoa(ClampPageSize(params.MaxResults)))
	if params.PageToken != "" {
		q.Set("pageToken", params.PageToken)
	}

	var page CallPage
	if err := c.get(ctx, "/calls", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListConversations returns one page of conversations for up to 50 numbers.
func (c *Client) ListConversations(ctx context.Context, params ListConversationsParams) (*ConversationPage, error) {
	if len(params.PhoneNumbers) > maxConversationBatch {
		return nil, fmt.Errorf("list conversations: %d phone numbers exceeds provider limit %d", len(params.PhoneNumbers), maxConversationBatch)
	}

	q := url.Values{}
	for _, n := range params.PhoneNumbers {
		q.Add("phoneNumbers", n)
	}
	if !params.UpdatedAfter.IsZero() {
		q.Set("updatedAfter", params.UpdatedAfter.UTC().Format(time.RFC3339))
	}
	if !params.UpdatedBefore.IsZero() {
		q.Set("updatedBefore", params.UpdatedBefore.UTC().Format(time.RFC3339))
	}
	q.Set("maxResults", strconv.Itoa(ClampPageSize(params.MaxResults)))
	if params.PageToken != "" {
		q.Set("pageToken", params.PageToken)
	}
	if params.ExcludeInactive {
		q.Set("excludeInactive", "true")
	}

	var page ConversationPage
	if err := c.get(ctx, "/conversations", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCall fetches a single call by id.
func (c *Client) GetCall(ctx context.Context, id string) (*Call, error) {
	var envelope struct {
		Data Call `json:"data"`
	}
	if err := c.get(ctx, "/calls/"+url.PathEscape(id), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// GetContact fetches a single contact by id.
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	var envelope struct {
		Data Contact `json:"data"`
	}
	if err := c.get(ctx, "/contacts/"+url.PathEscape(id), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// SearchContacts looks up contacts by phone number.
func (c *Client) SearchContacts(ctx context.Context, phoneNumber string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = defaultContactResults
	}
	q := url.Values{}
	q.Set("phoneNumber", phoneNumber)
	q.Set("maxResults", strconv.Itoa(limit))

	var envelope struct {
		Data []Contact `json:"data"`
	}
	if err := c.get(ctx, "/contacts", q, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// ListPhoneNumbers returns all provider-owned phone numbers for the workspace.
func (c *Client) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var envelope struct {
		Data []PhoneNumber `json:"data"`
	}
	if err := c.get(ctx, "/phone-numbers", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}
