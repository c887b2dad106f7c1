// Package talkjs posts bot replies into TalkJS conversations.
package talkjs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.talkjs.com"
	defaultTimeout = 10 * time.Second
	messageType    = "UserMessage"
)

// ErrRelay indicates a reply could not be delivered to the chat provider.
var ErrRelay = errors.New("talkjs: relay failed")

type outboundMessage struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	Type   string `json:"type"`
}

// Client sends messages as the bot user of one TalkJS app.
type Client struct {
	http  *resty.Client
	appID string
	botID string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
			c.http.SetBaseURL(u)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func NewClient(appID, secretKey, botID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, errors.New("talkjs: app id must not be empty")
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("talkjs: secret key must not be empty")
	}
	if strings.TrimSpace(botID) == "" {
		return nil, errors.New("talkjs: bot id must not be empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultTimeout).
			SetAuthToken(secretKey),
		appID: appID,
		botID: botID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BotID returns the user id replies are sent as.
func (c *Client) BotID() string {
	return c.botID
}

// Send posts text into the conversation as the bot.
func (c *Client) Send(ctx context.Context, conversationID, text string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", ErrRelay)
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"appID":          c.appID,
			"conversationID": conversationID,
		}).
		SetBody([]outboundMessage{{Text: text, Sender: c.botID, Type: messageType}}).
		Post("/v1/{appID}/conversations/{conversationID}/messages")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRelay, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: unexpected status %d: %s", ErrRelay, res.StatusCode(), res.String())
	}
	return nil
}
