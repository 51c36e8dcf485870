package kord

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// apiResponse is the platform's uniform REST envelope.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (b *Bot) getJSON(path string, query map[string]string, out interface{}) error {
	resp, err := b.http.R().SetQueryParams(query).Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decodeAPIResponse(path, resp.StatusCode(), resp.Body(), out)
}

func (b *Bot) postJSON(path string, body interface{}, out interface{}) error {
	resp, err := b.http.R().SetBody(body).Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decodeAPIResponse(path, resp.StatusCode(), resp.Body(), out)
}

func decodeAPIResponse(path string, status int, body []byte, out interface{}) error {
	if status != 200 {
		return fmt.Errorf("%s: unexpected status %d", path, status)
	}
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("%s: api error %d: %s", path, envelope.Code, envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", path, err)
		}
	}
	return nil
}

// UserMe fetches the bot's own identity.
func (b *Bot) UserMe() (*User, error) {
	var me User
	if err := b.getJSON("/api/v3/user/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GatewayURL fetches a fresh signed gateway URL. Each URL is single use;
// reconnects must call this again.
func (b *Bot) GatewayURL() (string, error) {
	var data struct {
		URL string `json:"url"`
	}
	if err := b.getJSON("/api/v3/gateway/index", map[string]string{"compress": "0"}, &data); err != nil {
		return "", err
	}
	return data.URL, nil
}

// OnlineStatus reports whether the platform currently sees the bot
// online.
func (b *Bot) OnlineStatus() (bool, error) {
	var data struct {
		Online bool `json:"online"`
	}
	if err := b.getJSON("/api/v3/user/get-online-status", nil, &data); err != nil {
		return false, err
	}
	return data.Online, nil
}

// Online declares the bot online, required before webhook deliveries
// flow.
func (b *Bot) Online() error {
	return b.postJSON("/api/v3/user/online", nil, nil)
}

// MessageCreateResponse identifies a sent message.
type MessageCreateResponse struct {
	MsgID        string `json:"msg_id"`
	MsgTimestamp int64  `json:"msg_timestamp"`
	Nonce        string `json:"nonce"`
}

type messageCreateRequest struct {
	Type         MessageType `json:"type,omitempty"`
	TargetID     string      `json:"target_id"`
	Content      string      `json:"content"`
	Quote        string      `json:"quote,omitempty"`
	TempTargetID string      `json:"temp_target_id,omitempty"`
	Nonce        string      `json:"nonce"`
}

// MessageOption customizes an outgoing message.
type MessageOption func(*messageCreateRequest)

// WithQuote makes the message quote-reply to msgID.
func WithQuote(msgID string) MessageOption {
	return func(req *messageCreateRequest) { req.Quote = msgID }
}

// WithTempTarget makes the message visible only to userID.
func WithTempTarget(userID string) MessageOption {
	return func(req *messageCreateRequest) { req.TempTargetID = userID }
}

// WithType overrides the message type, KMarkdown by default.
func WithType(t MessageType) MessageOption {
	return func(req *messageCreateRequest) { req.Type = t }
}

// SendMessage sends content to a channel.
func (b *Bot) SendMessage(targetID, content string, opts ...MessageOption) (*MessageCreateResponse, error) {
	req := &messageCreateRequest{
		Type:     MessageTypeKMarkdown,
		TargetID: targetID,
		Content:  content,
		Nonce:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(req)
	}
	var created MessageCreateResponse
	if err := b.postJSON("/api/v3/message/create", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GuildRoleList fetches every role of a guild, walking pagination.
func (b *Bot) GuildRoleList(guildID string) ([]Role, error) {
	var roles []Role
	for page := 1; ; page++ {
		resp, err := b.http.R().SetQueryParams(map[string]string{
			"guild_id": guildID,
			"page":     strconv.Itoa(page),
		}).Get("/api/v3/guild-role/list")
		if err != nil {
			return nil, fmt.Errorf("GET /api/v3/guild-role/list: %w", err)
		}
		var data struct {
			Items []Role `json:"items"`
		}
		if err := decodeAPIResponse("/api/v3/guild-role/list", resp.StatusCode(), resp.Body(), &data); err != nil {
			return nil, err
		}
		roles = append(roles, data.Items...)

		total := gjson.GetBytes(resp.Body(), "data.meta.page_total").Int()
		if total == 0 || int64(page) >= total {
			return roles, nil
		}
	}
}
