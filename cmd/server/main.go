package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/config"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/db"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/handlers"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/race"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/store"
	"github.com/Harsha2k4/typing-racer-prod-bots/internal/text"
)

func main() {
	godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.FromEnv()

	var passages *db.Passages
	if cfg.MongoURI != "" {
		var err error
		passages, err = db.Connect(cfg.MongoURI)
		if err != nil {
			log.Warn().Err(err).Msg("mongo unavailable, serving generated passages only")
			passages = nil
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening store failed")
	}
	defer st.Close()

	clock := clockwork.NewRealClock()
	h := &handlers.Handlers{
		Hub:   race.NewHub(clock),
		Text:  text.NewService(passages),
		Store: st,
		Clock: clock,
	}

	mux := http.NewServeMux()
	h.Routes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: c.Handler(mux),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-stop
		log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
		if passages != nil {
			passages.Close(ctx)
		}
	}()

	log.Info().Str("addr", cfg.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
