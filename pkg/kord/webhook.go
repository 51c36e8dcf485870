package kord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/kooklab/kord/pkg/config"
	"github.com/kooklab/kord/pkg/logger"
)

const maxWebhookBody = 1 << 20

// webhookServer receives push deliveries for every registered bot and
// serves the plugin route table. Deliveries are routed to a bot by the
// verify token carried in the body; nothing is trusted from the URL.
type webhookServer struct {
	app *App
	cfg config.WebhookConfig
	srv *http.Server
}

func newWebhookServer(app *App, cfg config.WebhookConfig) *webhookServer {
	return &webhookServer{app: app, cfg: cfg}
}

func (ws *webhookServer) start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.handle)
	ws.srv = &http.Server{Handler: mux}

	addr := fmt.Sprintf(":%d", ws.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.InfoCF("webhook", "Listening", map[string]interface{}{
		"addr": addr,
		"path": ws.cfg.Path,
	})

	go func() {
		if err := ws.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("webhook", "Server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (ws *webhookServer) stop() {
	if ws.srv != nil {
		_ = ws.srv.Close()
	}
}

func (ws *webhookServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == ws.cfg.Path {
		ws.handleDelivery(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, ws.cfg.RouterPath) {
		sub := strings.TrimPrefix(r.URL.Path, ws.cfg.RouterPath)
		if sub == "" {
			sub = "/"
		}
		if handler, ok := ws.app.routers.lookup(r.Method, sub); ok {
			handler(w, r)
			return
		}
	}
	http.NotFound(w, r)
}

// handleDelivery decodes one push delivery, answers the verification
// challenge synchronously, and otherwise acknowledges before handing the
// event to the normalizer.
func (ws *webhookServer) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := ws.readBody(r)
	if err != nil {
		logger.WarnCF("webhook", "Failed to read delivery", map[string]interface{}{"error": err.Error()})
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.WarnCF("webhook", "Malformed delivery envelope", map[string]interface{}{"error": err.Error()})
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var data Data
	if err := json.Unmarshal(payload.D, &data); err != nil {
		logger.WarnCF("webhook", "Malformed delivery body", map[string]interface{}{"error": err.Error()})
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	bot := ws.app.BotByVerifyToken(data.VerifyToken)
	if bot == nil {
		logger.WarnCF("webhook", "No bot for verify token", map[string]interface{}{
			"verify_token": data.VerifyToken,
		})
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if data.ChannelType == ChannelTypeChallenge {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": data.Challenge})
		return
	}

	// Acknowledge first so dispatch latency never delays the platform.
	w.WriteHeader(http.StatusOK)
	go Trigger(ws.app, bot, &data)
}

func (ws *webhookServer) readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}
	if !ws.cfg.Compressed {
		return body, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inflate delivery: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
