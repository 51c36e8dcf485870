package kord

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
)

func newRESTBot(t *testing.T, handler http.HandlerFunc) *Bot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Bot{http: resty.New().SetBaseURL(srv.URL)}
}

func TestSendMessage(t *testing.T) {
	var got map[string]interface{}
	bot := newRESTBot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/message/create" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		fmt.Fprint(w, `{"code":0,"message":"","data":{"msg_id":"m1","msg_timestamp":123,"nonce":"n"}}`)
	})

	created, err := bot.SendMessage("c1", "hello", WithQuote("q1"), WithTempTarget("u1"))
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if created.MsgID != "m1" {
		t.Errorf("MsgID = %q", created.MsgID)
	}
	if got["target_id"] != "c1" || got["content"] != "hello" {
		t.Errorf("request = %v", got)
	}
	if got["quote"] != "q1" || got["temp_target_id"] != "u1" {
		t.Errorf("options not applied: %v", got)
	}
	if got["type"] != float64(MessageTypeKMarkdown) {
		t.Errorf("type = %v, want KMarkdown default", got["type"])
	}
	if nonce, _ := got["nonce"].(string); nonce == "" {
		t.Error("nonce missing")
	}
}

func TestAPIErrorCode(t *testing.T) {
	bot := newRESTBot(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":40100,"message":"invalid token","data":{}}`)
	})
	if _, err := bot.UserMe(); err == nil {
		t.Fatal("a non-zero envelope code must surface as an error")
	}
}

func TestGatewayURLFetch(t *testing.T) {
	bot := newRESTBot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/gateway/index" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("compress") != "0" {
			t.Errorf("compress = %q, want 0", r.URL.Query().Get("compress"))
		}
		fmt.Fprint(w, `{"code":0,"message":"","data":{"url":"wss://example.test/gw"}}`)
	})
	url, err := bot.GatewayURL()
	if err != nil {
		t.Fatalf("GatewayURL() error = %v", err)
	}
	if url != "wss://example.test/gw" {
		t.Errorf("url = %q", url)
	}
}

func TestGuildRoleListPagination(t *testing.T) {
	bot := newRESTBot(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"code":0,"message":"","data":{"items":[{"role_id":1,"name":"admin","permissions":1}],"meta":{"page_total":2}}}`)
		case "2":
			fmt.Fprint(w, `{"code":0,"message":"","data":{"items":[{"role_id":2,"name":"member","permissions":0}],"meta":{"page_total":2}}}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	roles, err := bot.GuildRoleList("g1")
	if err != nil {
		t.Fatalf("GuildRoleList() error = %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("roles = %d, want both pages merged", len(roles))
	}
	if roles[0].RoleID != 1 || roles[1].RoleID != 2 {
		t.Errorf("roles = %+v", roles)
	}
}

func TestPermissionBits(t *testing.T) {
	perms := GeneratePermission(PermissionAdmin, PermissionKickUser)
	if !HasPermission(perms, PermissionAdmin) {
		t.Error("admin bit not set")
	}
	if !HasPermission(perms, PermissionKickUser) {
		t.Error("kick bit not set")
	}
	if HasPermission(perms, PermissionBanUser) {
		t.Error("ban bit set unexpectedly")
	}
}

func TestEscapeKMarkdown(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"*bold*", `\*bold\*`},
		{"[link](url)", `\[link\]\(url\)`},
		{"a-b:c", `a\-b\:c`},
	}
	for _, tt := range tests {
		if got := EscapeKMarkdown(tt.input); got != tt.want {
			t.Errorf("EscapeKMarkdown(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
