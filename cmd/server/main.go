// chatshop - conversational storefront served over Telegram and a web chat.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/chatshop/internal/api"
	"github.com/ashureev/chatshop/internal/bot"
	"github.com/ashureev/chatshop/internal/catalog"
	"github.com/ashureev/chatshop/internal/config"
	"github.com/ashureev/chatshop/internal/health"
	"github.com/ashureev/chatshop/internal/idempotency"
	"github.com/ashureev/chatshop/internal/identity"
	"github.com/ashureev/chatshop/internal/middleware"
	"github.com/ashureev/chatshop/internal/notify"
	"github.com/ashureev/chatshop/internal/orders"
	"github.com/ashureev/chatshop/internal/render"
	"github.com/ashureev/chatshop/internal/session"
	"github.com/ashureev/chatshop/internal/transport/telegram"
	"github.com/ashureev/chatshop/internal/transport/wschat"
	"github.com/ashureev/chatshop/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type redisPinger struct{ *redis.Client }

func (r redisPinger) Ping(ctx context.Context) error { return r.Client.Ping(ctx).Err() }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"telegram", cfg.Telegram.Token != "", "web_chat", cfg.WebApp.ChatEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog: remote first, local file as fallback. Fatal when neither loads.
	var sources []catalog.Source
	if cfg.Catalog.URL != "" {
		sources = append(sources, catalog.HTTPSource{URL: cfg.Catalog.URL, Timeout: cfg.Catalog.Timeout})
	}
	if cfg.Catalog.Path != "" {
		sources = append(sources, catalog.FileSource{Path: cfg.Catalog.Path})
	}
	products, err := catalog.Load(ctx, sources...)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog loaded", "products", products.Len())

	// Order sinks.
	db, err := orders.NewSQLite(cfg.Orders.DBPath)
	if err != nil {
		slog.Error("Failed to initialize order database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close order database", "error", closeErr)
		}
	}()
	sinks := orders.MultiSink{db}
	if cfg.Orders.LogPath != "" {
		fileSink, err := orders.NewFileSink(cfg.Orders.LogPath)
		if err != nil {
			slog.Error("Failed to open order log", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, fileSink)
	}
	slog.Info("Order sinks ready", "db", cfg.Orders.DBPath, "log", cfg.Orders.LogPath)

	// Outbound transports.
	mux := render.NewMux()
	var tg *telegram.Bot
	if cfg.Telegram.Token != "" {
		tg, err = telegram.New(telegram.Config{
			Token:         cfg.Telegram.Token,
			APIURL:        cfg.Telegram.APIURL,
			WebhookSecret: cfg.Telegram.WebhookSecret,
		}, logger)
		if err != nil {
			slog.Error("Failed to reach Telegram Bot API", "error", err)
			os.Exit(1)
		}
		if username, err := tg.Username(ctx); err == nil {
			slog.Info("Telegram bot authenticated", "username", username)
		}
		mux.Handle(telegram.Channel, tg.Transport())
	}
	hub := wschat.NewHub()
	if cfg.WebApp.ChatEnabled {
		mux.Handle(wschat.Channel, hub)
	}

	// Operator notifications. Each one is optional.
	var notifiers notify.Multi
	if tg != nil && cfg.Telegram.AdminChatID != 0 {
		notifiers = append(notifiers, notify.NewChatNotifier(mux, telegram.ChatRef(cfg.Telegram.AdminChatID)))
	}
	if cfg.Events.RabbitMQURL != "" {
		pub, err := notify.DialAMQP(cfg.Events.RabbitMQURL)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, order events disabled", "error", err)
		} else {
			defer func() {
				if closeErr := pub.Close(); closeErr != nil {
					slog.Warn("Failed to close RabbitMQ publisher", "error", closeErr)
				}
			}()
			notifiers = append(notifiers, pub)
		}
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		pub := notify.NewKafkaPublisher(cfg.Events.KafkaTopic, cfg.Events.KafkaBrokers...)
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				slog.Warn("Failed to close Kafka publisher", "error", closeErr)
			}
		}()
		notifiers = append(notifiers, pub)
	}
	slog.Info("Operator notifiers configured", "count", len(notifiers))

	orderService := orders.NewService(sinks, notifiers, logger)

	// Submission dedup: Redis when reachable, in-process otherwise.
	healthChecks := []health.Pinger{db}
	var guard idempotency.Guard = idempotency.NewMemoryGuard(cfg.SubmissionDedupTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("Redis unavailable, using in-memory submission guard", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			defer func() {
				if closeErr := rdb.Close(); closeErr != nil {
					slog.Warn("Failed to close Redis client", "error", closeErr)
				}
			}()
			guard = idempotency.NewRedisGuard(rdb, cfg.SubmissionDedupTTL)
			healthChecks = append(healthChecks, redisPinger{rdb})
			slog.Info("Redis submission guard enabled", "addr", cfg.RedisAddr)
		}
	}

	// Conversation core.
	sessions := session.NewStore()
	session.StartJanitor(ctx, sessions, session.JanitorConfig{
		Interval:   cfg.JanitorInterval,
		SessionTTL: cfg.SessionTTL,
		DraftTTL:   cfg.DraftTTL,
	})

	router := bot.NewRouter(bot.RouterConfig{
		Catalog:   products,
		Sessions:  sessions,
		Presenter: render.NewPresenter(mux, logger),
		Orders:    orderService,
		Guard:     guard,
		WebAppURL: cfg.WebApp.URL,
		Logger:    logger,
	})
	dispatcher := bot.NewDispatcher(router, cfg.DispatchWorkers, cfg.DispatchQueueSize, logger)
	dispatcher.Start(ctx)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	apiHandler := api.NewHandler(db, products, cfg.AdminAPIToken)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.Origins()))
		apiHandler.Routes(r)
	})

	webhookPath := "/telegram/webhook/" + cfg.Telegram.WebhookSecret
	if tg != nil && cfg.Telegram.UseWebhook {
		r.Post(webhookPath, tg.WebhookHandler())
	}

	if cfg.WebApp.ChatEnabled {
		r.With(identity.Middleware(cfg.IsDevelopment())).
			Get("/ws/chat", wschat.NewHandler(hub, dispatcher, cfg.Origins(), cfg.IsDevelopment()).ServeHTTP)
	}

	// Embedded shop page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket sessions are long lived
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if tg != nil {
		if cfg.Telegram.UseWebhook {
			hookURL := cfg.Telegram.WebhookURL + webhookPath
			g.Go(func() error { return tg.ServeWebhook(gctx, hookURL, dispatcher) })
		} else {
			g.Go(func() error { return tg.Poll(gctx, dispatcher) })
		}
	}

	if cfg.GRPCPort != "" {
		healthServer := health.NewServer(30*time.Second, logger, healthChecks...)
		g.Go(func() error { return healthServer.ListenAndServe(gctx, ":"+cfg.GRPCPort) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
	}

	// Drain queued events, then let in-flight notifications finish.
	dispatcher.Close()
	orderService.Wait()

	slog.Info("Server stopped successfully", "sessions", sessions.Len())
}
