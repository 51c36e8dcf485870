package kord

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Signal identifies a gateway frame type. Values follow the platform's
// signalling enum.
type Signal int

const (
	SignalEvent Signal = iota
	SignalHello
	SignalPing
	SignalPong
	SignalReconnect
	SignalResume
)

// Payload is the wire envelope shared by the gateway and webhook
// transports: {s: signal, d: body, sn: sequence}.
type Payload struct {
	S  Signal          `json:"s"`
	D  json.RawMessage `json:"d,omitempty"`
	SN int64           `json:"sn,omitempty"`
}

// MessageType is the platform's message type code. 255 is reserved for
// system events.
type MessageType int

const (
	MessageTypeText      MessageType = 1
	MessageTypeImage     MessageType = 2
	MessageTypeVideo     MessageType = 3
	MessageTypeFile      MessageType = 4
	MessageTypeUnknown   MessageType = 7
	MessageTypeAudio     MessageType = 8
	MessageTypeKMarkdown MessageType = 9
	MessageTypeCard      MessageType = 10
	MessageTypeSystem    MessageType = 255
)

// Channel kinds as delivered in Data.ChannelType.
const (
	ChannelTypeGroup     = "GROUP"
	ChannelTypePerson    = "PERSON"
	ChannelTypeChallenge = "WEBHOOK_CHALLENGE"
)

// systemUserID is the sentinel author id the platform uses for system
// events; the real actor id then lives in extra.body.user_id.
const systemUserID = "1"

// Data is the decoded event body. Extra is kept raw because its shape
// depends on the event subtype; use gjson queries via Session helpers.
type Data struct {
	ChannelType  string          `json:"channel_type"`
	Type         MessageType     `json:"type"`
	Challenge    string          `json:"challenge,omitempty"`
	VerifyToken  string          `json:"verify_token,omitempty"`
	TargetID     string          `json:"target_id"`
	AuthorID     string          `json:"author_id"`
	Content      string          `json:"content"`
	MsgID        string          `json:"msg_id"`
	MsgTimestamp int64           `json:"msg_timestamp"`
	Nonce        string          `json:"nonce,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

// ExtraField resolves a dotted path inside the raw extra payload.
func (d *Data) ExtraField(path string) gjson.Result {
	return gjson.GetBytes(d.Extra, path)
}

// User is the subset of the platform user object the runtime needs.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	IdentifyNum string `json:"identify_num"`
	Online      bool   `json:"online"`
	Bot         bool   `json:"bot"`
	Avatar      string `json:"avatar"`
}

// Role is a guild role with its permission bit set.
type Role struct {
	RoleID      int64  `json:"role_id"`
	Name        string `json:"name"`
	Permissions uint64 `json:"permissions"`
}

// Permission is a bit position in a role's permission set.
type Permission uint

const (
	PermissionAdmin Permission = iota
	PermissionManageGuild
	PermissionViewAdminLog
	PermissionCreateInvite
	PermissionManageInvite
	PermissionManageChannel
	PermissionKickUser
	PermissionBanUser
	PermissionManageGuildEmoji
	PermissionChangeNickname
	PermissionManageRole
	PermissionViewChannel
	PermissionSendMessage
	PermissionManageMessage
)

// HasPermission reports whether the permission bit is set.
func HasPermission(permissions uint64, p Permission) bool {
	return permissions&(1<<p) != 0
}

// GeneratePermission builds a permission bit set.
func GeneratePermission(bits ...Permission) uint64 {
	var permissions uint64
	for _, b := range bits {
		permissions |= 1 << b
	}
	return permissions
}

// Event names dispatched by the normalizer.
const (
	EventMessage               = "message"
	EventMessageCreated        = "message-created"
	EventPrivateMessageCreated = "private-message-created"
	EventButtonClick           = "button-click"
	EventSerialButtonClick     = "serial-button-click"
	EventInternalButton        = "internal/button"
	EventWebhook               = "webhook"
	EventMiddleware            = "middleware"
	EventBeforeParse           = "command/before-parse"
	EventBeforeExecute         = "command/before-execute"
	EventCommandNotFound       = "command/not-found"
	EventCommandExecute        = "command/execute"
)

// noticeEvents maps the platform's system-event subtype codes to the
// typed event names subscribers register against.
var noticeEvents = map[string]string{
	"user_updated":            "user-updated",
	"message_btn_click":       EventButtonClick,
	"added_reaction":          "reaction-added",
	"deleted_reaction":        "reaction-removed",
	"updated_message":         "message-updated",
	"deleted_message":         "message-deleted",
	"pinned_message":          "message-pinned",
	"unpinned_message":        "message-unpinned",
	"joined_guild":            "member-joined",
	"exited_guild":            "member-exited",
	"updated_guild_member":    "member-updated",
	"updated_guild":           "guild-updated",
	"deleted_guild":           "guild-deleted",
	"self_joined_guild":       "self-guild-joined",
	"self_exited_guild":       "self-guild-leave",
	"added_role":              "roles-added",
	"deleted_role":            "roles-removed",
	"updated_role":            "roles-updated",
	"added_block_list":        "block-added",
	"deleted_block_list":      "block-removed",
	"added_emoji":             "emoji-added",
	"updated_emoji":           "emoji-updated",
	"deleted_emoji":           "emoji-removed",
	"added_channel":           "channel-added",
	"updated_channel":         "channel-updated",
	"deleted_channel":         "channel-deleted",
	"updated_private_message": "private-message-updated",
	"deleted_private_message": "private-message-deleted",
	"private_added_reaction":  "private-reaction-added",
	"private_deleted_reaction": "private-reaction-removed",
	"joined_channel":          "voice-joined",
	"exited_channel":          "voice-exited",
	"guild_member_online":     "member-online",
	"guild_member_offline":    "member-offline",
}
