package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"retrocade/internal/config"
	"retrocade/internal/eventfeed"
	"retrocade/internal/logging"
	"retrocade/internal/metrics"
	"retrocade/internal/nativerun"
	"retrocade/internal/notify"
	"retrocade/internal/presence"
	"retrocade/internal/store"
	httptransport "retrocade/internal/transport/http"
	"retrocade/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	svc := nativerun.NewSystemdManager(cfg.Native.DropinDir, time.Duration(cfg.Native.CommandTimeoutMS)*time.Millisecond)
	orchestrator := nativerun.New(cfg.Native, svc)

	m := metrics.New()
	feed := eventfeed.NewBuffer(500)
	control := ws.NewServer(orchestrator, st, m, feed, ws.Options{
		AllowOverflowSlots: cfg.Server.AllowOverflowSlots,
		RomsDir:            cfg.Native.RomsDir,
	})

	if !cfg.Server.PresenceDisabled {
		source := presence.NewBluetoothSource("", 0)
		poller := presence.NewPoller(source, time.Duration(cfg.Server.PresencePollMS)*time.Millisecond, control.UpdatePresence)
		go poller.Run(ctx)
	}

	notifyCfg, err := notify.ConfigFromServer(cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("notify config invalid")
	}
	notifier := notify.NewManager(notifyCfg, m)
	if err := notifier.Start(ctx, feed); err != nil {
		log.Fatal().Err(err).Msg("notify start failed")
	}

	r := httptransport.NewRouter(st, cfg, control, feed, m, notifier)
	httptransport.LogRoutes(r)

	// No ReadTimeout: the primary surfaces are a websocket upgrade and
	// an SSE stream, and a whole-request read deadline would cancel the
	// stream context mid-flight. Header timeout still bounds handshakes.
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	feed.Close()
	log.Info().Msg("shutdown complete")
}
