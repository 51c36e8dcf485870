package kord

import (
	"encoding/json"
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan *Session) *Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func expectNoEvent(t *testing.T, ch <-chan *Session) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected event delivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func capture(root *Context, event string) <-chan *Session {
	ch := make(chan *Session, 4)
	root.On(event, func(bot *Bot, s *Session) (interface{}, error) {
		ch <- s
		return nil, nil
	})
	return ch
}

func TestTriggerGuildMessage(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}
	bot.setMe(&User{ID: "bot1"})

	messages := capture(root, EventMessage)
	created := capture(root, EventMessageCreated)

	Trigger(app, bot, &Data{
		ChannelType: ChannelTypeGroup,
		Type:        MessageTypeText,
		TargetID:    "c1",
		AuthorID:    "u1",
		Content:     "hello",
		Extra:       json.RawMessage(`{"guild_id":"g1"}`),
	})

	s := waitEvent(t, messages)
	if s.UserID != "u1" || s.SelfID != "bot1" || s.GuildID != "g1" || s.ChannelID != "c1" {
		t.Errorf("session = %+v", s)
	}
	waitEvent(t, created)
}

func TestTriggerPrivateMessage(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	private := capture(root, EventPrivateMessageCreated)

	Trigger(app, bot, &Data{
		ChannelType: ChannelTypePerson,
		Type:        MessageTypeText,
		TargetID:    "code123",
		AuthorID:    "u1",
		Content:     "psst",
	})

	s := waitEvent(t, private)
	if s.GuildID != "code123" {
		t.Errorf("GuildID = %q, want the chat code", s.GuildID)
	}
}

func TestPrivateFilterMatchesDeliveredDM(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	private := make(chan *Session, 4)
	root.Private().On(EventPrivateMessageCreated, func(bot *Bot, s *Session) (interface{}, error) {
		private <- s
		return nil, nil
	})

	Trigger(app, bot, &Data{
		ChannelType: ChannelTypePerson,
		Type:        MessageTypeText,
		TargetID:    "code123",
		AuthorID:    "u1",
		Content:     "psst",
	})
	waitEvent(t, private)

	guildOnly := make(chan *Session, 4)
	root.Private().On(EventMessage, func(bot *Bot, s *Session) (interface{}, error) {
		guildOnly <- s
		return nil, nil
	})
	Trigger(app, bot, &Data{
		ChannelType: ChannelTypeGroup,
		Type:        MessageTypeText,
		TargetID:    "c1",
		AuthorID:    "u1",
		Content:     "in public",
		Extra:       json.RawMessage(`{"guild_id":"g1"}`),
	})
	expectNoEvent(t, guildOnly)
}

func TestTriggerNoticeMapping(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	joined := capture(root, "member-joined")

	Trigger(app, bot, &Data{
		Type:     MessageTypeSystem,
		TargetID: "g1",
		AuthorID: systemUserID,
		Extra:    json.RawMessage(`{"type":"joined_guild","body":{"user_id":"u7","guild_id":"g1","channel_id":"c3"}}`),
	})

	s := waitEvent(t, joined)
	if s.UserID != "u7" {
		t.Errorf("UserID = %q, want the operator from the body", s.UserID)
	}
	if s.GuildID != "g1" || s.ChannelID != "c3" {
		t.Errorf("session = %+v", s)
	}
}

func TestTriggerUnknownNoticeFallsBack(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	webhook := capture(root, EventWebhook)

	Trigger(app, bot, &Data{
		Type:     MessageTypeSystem,
		TargetID: "g1",
		AuthorID: systemUserID,
		Extra:    json.RawMessage(`{"type":"something_new"}`),
	})

	waitEvent(t, webhook)
}

func TestTriggerButtonDualDispatch(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	var serialValue string
	serialDone := make(chan struct{}, 1)
	root.On(EventSerialButtonClick, func(bot *Bot, s *Session) (interface{}, error) {
		serialValue = s.Data.ExtraField("body.value").String()
		serialDone <- struct{}{}
		return nil, nil
	})
	clicks := capture(root, EventButtonClick)

	Trigger(app, bot, &Data{
		Type:     MessageTypeSystem,
		TargetID: "g1",
		AuthorID: systemUserID,
		Extra:    json.RawMessage(`{"type":"message_btn_click","body":{"user_id":"u7","target_id":"c9","value":"orig"}}`),
	})

	<-serialDone
	if serialValue != "orig" {
		t.Errorf("serial listener saw value %q", serialValue)
	}
	s := waitEvent(t, clicks)
	if s.ChannelID != "c9" {
		t.Errorf("ChannelID = %q, want the button's target", s.ChannelID)
	}
	if s.UserID != "u7" {
		t.Errorf("UserID = %q, want the clicking user", s.UserID)
	}
}

func TestTriggerButtonRewrite(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	root.On(EventInternalButton, func(bot *Bot, s *Session) (interface{}, error) {
		return "rewritten", nil
	})

	var serialValue string
	serialDone := make(chan struct{}, 1)
	root.On(EventSerialButtonClick, func(bot *Bot, s *Session) (interface{}, error) {
		serialValue = s.Data.ExtraField("body.value").String()
		serialDone <- struct{}{}
		return nil, nil
	})

	Trigger(app, bot, &Data{
		Type:     MessageTypeSystem,
		TargetID: "g1",
		AuthorID: systemUserID,
		Extra:    json.RawMessage(`{"type":"message_btn_click","body":{"user_id":"u7","target_id":"c9","value":"orig"}}`),
	})

	<-serialDone
	if serialValue != "rewritten" {
		t.Errorf("serial listener saw value %q, want the rewrite", serialValue)
	}
}

func TestTriggerButtonVeto(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	bot := &Bot{app: app}

	root.On(EventInternalButton, func(bot *Bot, s *Session) (interface{}, error) {
		return false, nil
	})
	clicks := capture(root, EventButtonClick)

	Trigger(app, bot, &Data{
		Type:     MessageTypeSystem,
		TargetID: "g1",
		AuthorID: systemUserID,
		Extra:    json.RawMessage(`{"type":"message_btn_click","body":{"user_id":"u7","target_id":"c9","value":"orig"}}`),
	})

	expectNoEvent(t, clicks)
}
