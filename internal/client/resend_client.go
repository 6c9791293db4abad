package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAlreadySubscribed is returned by AddContact when the audience already
// holds the address.
var ErrAlreadySubscribed = errors.New("contact already subscribed")

// APIError is a non-2xx answer from Resend.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("resend %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("resend %d: %s", e.StatusCode, e.Message)
}

type ResendClient struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewResendClient(baseURL, apiKey, from string) *ResendClient {
	return &ResendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type contactRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	Unsubscribed bool   `json:"unsubscribed"`
}

type errorResponse struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Send delivers one transactional email and returns the provider message id.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) (string, error) {
	body, err := c.post(ctx, "/emails", sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", err
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if sr.ID == "" {
		return "", fmt.Errorf("missing id in response body=%q", string(body))
	}
	return sr.ID, nil
}

// AddContact registers email in the audience. A duplicate is reported as
// ErrAlreadySubscribed.
func (c *ResendClient) AddContact(ctx context.Context, audienceID, email, firstName string) error {
	_, err := c.post(ctx, "/audiences/"+url.PathEscape(audienceID)+"/contacts", contactRequest{
		Email:        email,
		FirstName:    firstName,
		Unsubscribed: false,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && isDuplicate(apiErr) {
		return ErrAlreadySubscribed
	}
	return err
}

func isDuplicate(e *APIError) bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "already exists")
}

func (c *ResendClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Message != "" {
			apiErr.Name = er.Name
			apiErr.Message = er.Message
		}
		return nil, apiErr
	}
	return body, nil
}
