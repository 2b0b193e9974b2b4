package gmail

import (
	"context"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client wraps Gmail API service
type Client struct {
	srv *gmail.Service
}

// NewClient creates a new Gmail client
func NewClient(srv *gmail.Service) *Client {
	return &Client{srv: srv}
}

// NewService creates a Gmail service that sends requests through httpClient.
// A non-empty endpoint overrides the API base URL.
func NewService(ctx context.Context, httpClient *http.Client, endpoint string) (*gmail.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return gmail.NewService(ctx, opts...)
}

// ListMessages returns the IDs of the first page of messages matching q.
func (c *Client) ListMessages(ctx context.Context, q MessageQuery) ([]MessageSummary, error) {
	req := c.srv.Users.Messages.List(UserID).MaxResults(q.MaxResults)
	if q.Search != "" {
		req = req.Q(q.Search)
	}

	res, err := req.Context(ctx).Do()
	if err != nil {
		return nil, newTransportError("list messages", err)
	}

	summaries := make([]MessageSummary, 0, len(res.Messages))
	for _, ref := range res.Messages {
		if ref == nil {
			continue
		}
		summaries = append(summaries, MessageSummary{ID: ref.Id})
	}
	return summaries, nil
}

// GetMessage fetches a single message with full body
func (c *Client) GetMessage(ctx context.Context, messageID string) (*MessageDetail, error) {
	msg, err := c.srv.Users.Messages.Get(UserID, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, newTransportError("get message "+messageID, err)
	}

	return GmailToDetail(msg), nil
}
