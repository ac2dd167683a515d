package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/acme/outreach-monitor/internal/domain"
)

// LoginResult is the answer of the password check.
type LoginResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ReplyInput is a manual reply to a recipient.
type ReplyInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SenderAccountInput is the create payload for a sender mailbox. Empty optional fields are sent as null.
type SenderAccountInput struct {
	Email            string  `json:"email"`
	Password         *string `json:"password"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	IMAPHost         *string `json:"imap_host"`
	IMAPPort         int     `json:"imap_port"`
	IMAPSSL          bool    `json:"imap_ssl"`
	SMTPHost         *string `json:"smtp_host"`
	SMTPPort         *int    `json:"smtp_port"`
	SeleniumRequired bool    `json:"selenium_required"`
	ServerID         string  `json:"server_id"`
	IsActive         bool    `json:"is_active"`
}

func campaignPath(campaignID string, rest ...string) string {
	p := "/api/campaigns/" + url.PathEscape(campaignID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

// CheckPassword exchanges the operator password for an access token.
func (c *Client) CheckPassword(ctx context.Context, password string) (*LoginResult, error) {
	out := new(LoginResult)
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/check-password",
		body:   map[string]string{"password": password},
		out:    out,
		object: true,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListCampaigns returns the campaign rows. The backend may answer with a bare array, a
// {"campaigns": [...]} envelope or a single object.
func (c *Client) ListCampaigns(ctx context.Context) ([]domain.CampaignSummary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/campaigns", out: &raw}); err != nil {
		return nil, err
	}
	return decodeCampaignList(raw)
}

func decodeCampaignList(raw json.RawMessage) ([]domain.CampaignSummary, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.CampaignSummary{}, nil
	}

	if trimmed[0] == '[' {
		var list []domain.CampaignSummary
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("upstream: decode campaign list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Campaigns []domain.CampaignSummary `json:"campaigns"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Campaigns != nil {
		return envelope.Campaigns, nil
	}

	var single domain.CampaignSummary
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("upstream: decode campaign list: %w", err)
	}
	return []domain.CampaignSummary{single}, nil
}

// GetCampaign fetches the authoritative status snapshot.
func (c *Client) GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	out := new(domain.Campaign)
	if err := c.do(ctx, request{method: http.MethodGet, path: campaignPath(campaignID), out: out, object: true}); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = campaignID
	}
	return out, nil
}

// PauseCampaign asks the backend to stop sending.
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) error {
	return c.do(ctx, request{method: http.MethodPost, path: campaignPath(campaignID, "pause")})
}

// ResumeCampaign asks the backend to continue sending.
func (c *Client) ResumeCampaign(ctx context.Context, campaignID string) error {
	return c.do(ctx, request{method: http.MethodPost, path: campaignPath(campaignID, "resume")})
}

// GetObjectDetails fetches the per-recipient detail record.
func (c *Client) GetObjectDetails(ctx context.Context, campaignID, objectID string) (*domain.ObjectDetails, error) {
	out := new(domain.ObjectDetails)
	if err := c.do(ctx, request{method: http.MethodGet, path: campaignPath(campaignID, "objects", objectID), out: out, object: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetThread fetches the conversation for a thread id.
func (c *Client) GetThread(ctx context.Context, campaignID, threadID string) (*domain.EmailThread, error) {
	out := new(domain.EmailThread)
	if err := c.do(ctx, request{method: http.MethodGet, path: campaignPath(campaignID, "threads", threadID), out: out, object: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// SendReply posts a manual reply. It runs under the reply timeout, not the request timeout.
func (c *Client) SendReply(ctx context.Context, campaignID, objectID string, in ReplyInput) error {
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    campaignPath(campaignID, "objects", objectID, "reply"),
		body:    in,
		timeout: c.replyTimeout,
	})
}

// ListSenderAccounts lists sender mailboxes, including inactive ones unless activeOnly is set.
func (c *Client) ListSenderAccounts(ctx context.Context, activeOnly bool) ([]domain.SenderAccount, error) {
	var out []domain.SenderAccount
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/sender-accounts",
		query:  map[string]string{"active_only": fmt.Sprintf("%t", activeOnly)},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.SenderAccount{}
	}
	return out, nil
}

// CreateSenderAccount registers a sender mailbox.
func (c *Client) CreateSenderAccount(ctx context.Context, in SenderAccountInput) (*domain.SenderAccount, error) {
	out := new(domain.SenderAccount)
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/sender-accounts", body: in, out: out, object: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSenderAccount removes a sender mailbox.
func (c *Client) DeleteSenderAccount(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/sender-accounts/" + url.PathEscape(id)})
}
