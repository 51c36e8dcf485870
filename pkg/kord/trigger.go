package kord

import (
	"github.com/tidwall/sjson"

	"github.com/kooklab/kord/pkg/logger"
)

// Trigger normalizes a raw event body from either transport into a
// Session and fans it out to matching subscribers. Most deliveries are
// plain messages; the reserved system type code routes through the
// notice table instead.
func Trigger(app *App, bot *Bot, data *Data) {
	s := &Session{
		UserID: data.AuthorID,
		Data:   data,
	}
	// System events carry the real actor id in a nested operator field.
	if data.AuthorID == systemUserID {
		s.UserID = data.ExtraField("body.user_id").String()
	}
	if me := bot.Me(); me != nil {
		s.SelfID = me.ID
	}

	if data.Type != MessageTypeSystem {
		s.GuildID = data.ExtraField("guild_id").String()
		s.ChannelID = data.TargetID

		app.root.Parallel(EventMessage, bot, s)
		switch data.ChannelType {
		case ChannelTypeGroup:
			app.root.Parallel(EventMessageCreated, bot, s)
		case ChannelTypePerson:
			s.GuildID = data.TargetID
			app.root.Parallel(EventPrivateMessageCreated, bot, s)
		}
		return
	}

	triggerSystem(app, bot, s, data)
}

// triggerSystem handles the system branch: notice lookup plus the
// button interaction's dual dispatch.
func triggerSystem(app *App, bot *Bot, s *Session, data *Data) {
	s.GuildID = firstNonEmpty(data.ExtraField("body.guild_id").String(), data.TargetID)
	s.ChannelID = firstNonEmpty(data.ExtraField("body.channel_id").String(), data.TargetID)

	noticeType := data.ExtraField("type").String()
	if noticeType != "message_btn_click" {
		event := noticeEvents[noticeType]
		if event == "" {
			event = EventWebhook
		}
		app.root.Parallel(event, bot, s)
		return
	}

	s.ChannelID = data.ExtraField("body.target_id").String()

	// A privileged first-responder may rewrite the button value or veto
	// the whole interaction before normal fan-out.
	switch result := app.root.Bail(EventInternalButton, bot, s).(type) {
	case string:
		rewritten, err := sjson.SetBytes(data.Extra, "body.value", result)
		if err != nil {
			logger.WarnCF("events", "Failed to rewrite button value",
				map[string]interface{}{"error": err.Error()})
		} else {
			data.Extra = rewritten
		}
	case bool:
		if !result {
			return
		}
	}

	app.root.Serial(EventSerialButtonClick, bot, s)
	app.root.Parallel(EventButtonClick, bot, s)
}
