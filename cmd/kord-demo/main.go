package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kooklab/kord/pkg/config"
	"github.com/kooklab/kord/pkg/kord"
	"github.com/kooklab/kord/pkg/logger"
	"github.com/kooklab/kord/pkg/rates"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	dbPath := flag.String("db", "kord.db", "path to the cooldown database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.ErrorCF("main", "Failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	app, err := kord.New(cfg)
	if err != nil {
		logger.ErrorCF("main", "Failed to start runtime", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()
	root := app.Context()

	store, err := rates.Open(*dbPath)
	if err != nil {
		logger.ErrorCF("main", "Failed to open cooldown store", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	// Each bot gets its own scope so a dead identity tears down alone.
	for _, bc := range cfg.Bots {
		bc := bc
		root.Plugin(func(c *kord.Context) {
			if _, err := kord.NewBot(c, bc); err != nil {
				logger.ErrorCF("main", "Failed to register bot", map[string]interface{}{
					"verify_token": bc.VerifyToken,
					"error":        err.Error(),
				})
			}
		})
	}

	root.On("member-joined", func(bot *kord.Bot, s *kord.Session) (interface{}, error) {
		_, err := bot.SendMessage(s.ChannelID, "Welcome!")
		return nil, err
	})

	root.Command("roll [max]", "Roll a number", nil).
		AddChecker("cooldown", store.Cooldown("roll", 30*time.Second)).
		Action(func(argv *kord.Argv, bot *kord.Bot, s *kord.Session) (string, error) {
			max := 100
			if raw := argv.Param("max"); raw != "" {
				parsed, err := strconv.Atoi(raw)
				if err != nil || parsed < 1 {
					return "max must be a positive number", nil
				}
				max = parsed
			}
			return fmt.Sprintf("You rolled %d (1-%d)", rand.Intn(max)+1, max), nil
		})

	root.Command("confirm <thing>", "Confirm something interactively", nil).
		Action(func(argv *kord.Argv, bot *kord.Bot, s *kord.Session) (string, error) {
			if _, err := bot.SendMessage(s.ChannelID,
				fmt.Sprintf("Really %s? Reply yes within 10s.", kord.EscapeKMarkdown(argv.Param("thing")))); err != nil {
				return "", err
			}
			answer, ok := root.Prompt(s, 10*time.Second)
			if !ok {
				return "Timed out.", nil
			}
			if answer == "yes" {
				return "Confirmed.", nil
			}
			return "Cancelled.", nil
		})

	_ = root.Router(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	logger.InfoCF("main", "Runtime started", map[string]interface{}{"bots": len(cfg.Bots)})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.InfoC("main", "Shutting down")
}
