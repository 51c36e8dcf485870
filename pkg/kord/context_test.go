package kord

import (
	"testing"
	"time"
)

func TestPromptReceivesNextMessage(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	current := messageSession("pick a number")

	got := make(chan string, 1)
	go func() {
		content, ok := root.Prompt(current, 2*time.Second)
		if !ok {
			content = "<timeout>"
		}
		got <- content
	}()

	// Give the prompt goroutine time to install its middleware.
	time.Sleep(50 * time.Millisecond)
	app.processor.handleMessage(nil, messageSession("42"))

	select {
	case content := <-got:
		if content != "42" {
			t.Errorf("Prompt() = %q, want the follow-up content", content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("prompt never resolved")
	}
}

func TestPromptIgnoresOtherUsers(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	current := messageSession("pick a number")

	got := make(chan bool, 1)
	go func() {
		_, ok := root.Prompt(current, 300*time.Millisecond)
		got <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	other := messageSession("not me")
	other.UserID = "u2"
	app.processor.handleMessage(nil, other)

	if ok := <-got; ok {
		t.Error("prompt resolved from another user's message")
	}
}

func TestPromptTimeout(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()

	start := time.Now()
	_, ok := root.Prompt(messageSession("anyone there"), 100*time.Millisecond)
	if ok {
		t.Error("prompt resolved without a message")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestSuggestReceivesButtonClick(t *testing.T) {
	app := newTestApp(t)
	root := app.Context()
	current := messageSession("press the button")

	got := make(chan *Session, 1)
	go func() {
		s, ok := root.Suggest(current, 2*time.Second)
		if !ok {
			s = nil
		}
		got <- s
	}()

	time.Sleep(50 * time.Millisecond)
	click := &Session{UserID: "u1", SelfID: "bot1", ChannelID: "c9", Data: &Data{}}
	root.Serial(EventSerialButtonClick, nil, click)

	select {
	case s := <-got:
		if s == nil || s.ChannelID != "c9" {
			t.Errorf("Suggest() = %+v, want the click session", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("suggest never resolved")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	app.Close()
	app.Close()
	if !app.Context().Scope().Disposed() {
		t.Error("root scope not disposed after Close")
	}
}
