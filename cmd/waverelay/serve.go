package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/waverelay/waverelay/internal/config"
	"github.com/waverelay/waverelay/internal/db"
	"github.com/waverelay/waverelay/internal/event"
	"github.com/waverelay/waverelay/internal/handlers"
	"github.com/waverelay/waverelay/internal/inbound"
	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/media"
	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/outbound"
	"github.com/waverelay/waverelay/internal/push"
	"github.com/waverelay/waverelay/internal/room"
	"github.com/waverelay/waverelay/internal/server"
	"github.com/waverelay/waverelay/internal/storage"
	"github.com/waverelay/waverelay/internal/storage/providers/localfs"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

func runServe(cfg config.Config) {
	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideDBConn,
			provideStorage,
			provideWhatsAppClient,
			provideMediaCoordinator,
			provideEventHub,
			provideEventPublisher,
			provideRoomService,
			provideMessageService,
			provideInboundProcessor,
			provideOutboundDispatcher,
			providePushDispatcher,
			providePingHandler,
			provideWebhookHandler,
			provideMessageHandler,
			provideStreamHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideStorage(cfg config.Config) (storage.Provider, error) {
	return localfs.New(cfg.Storage.DataRoot, cfg.Storage.PublicBaseURL)
}

func provideWhatsAppClient(cfg config.Config) *whatsapp.Client {
	return whatsapp.NewClient(cfg.WhatsApp)
}

func provideMediaCoordinator(client *whatsapp.Client, backup storage.Provider) *media.Coordinator {
	return media.NewCoordinator(client, backup)
}

func provideEventHub() *event.Hub {
	return event.NewHub()
}

// provideEventPublisher wires the in-process hub and, when a broker URL is
// configured, an AMQP mirror behind one publisher.
func provideEventPublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, hub *event.Hub) (event.Publisher, error) {
	if cfg.AMQP.URL == "" {
		return hub, nil
	}
	amqp, err := event.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return amqp.Close() }})
	log.Info("mirroring events to amqp", slog.String("exchange", cfg.AMQP.Exchange))
	return event.NewMultiPublisher(hub, amqp), nil
}

func provideRoomService(conn *pgxpool.Pool) *room.Service {
	return room.NewService(room.NewPgStore(conn))
}

func provideMessageService(cfg config.Config, conn *pgxpool.Pool, publisher event.Publisher, rooms *room.Service) *message.DBService {
	return message.NewDBService(message.NewPgStore(conn), publisher, rooms, cfg.WhatsApp.StrictStatusOrder)
}

func provideInboundProcessor(rooms *room.Service, messages *message.DBService, coordinator *media.Coordinator, pushDispatcher *push.Dispatcher) *inbound.Processor {
	return inbound.NewProcessor(rooms, messages, coordinator, pushDispatcher)
}

func provideOutboundDispatcher(client *whatsapp.Client, coordinator *media.Coordinator, rooms *room.Service, messages *message.DBService) *outbound.Dispatcher {
	return outbound.NewDispatcher(client, coordinator, rooms, messages)
}

func providePushDispatcher(cfg config.Config) *push.Dispatcher {
	return push.NewDispatcher(cfg.Push.Endpoint)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, processor *inbound.Processor) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, cfg.WhatsApp, processor)
}

func provideMessageHandler(log *slog.Logger, dispatcher *outbound.Dispatcher, messages *message.DBService) *handlers.MessageHandler {
	return handlers.NewMessageHandler(log, dispatcher, messages)
}

func provideStreamHandler(log *slog.Logger, hub *event.Hub, messages *message.DBService) *handlers.StreamHandler {
	return handlers.NewStreamHandler(log, hub, messages)
}

func provideServer(cfg config.Config, log *slog.Logger, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler, messageHandler *handlers.MessageHandler, streamHandler *handlers.StreamHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, cfg.Auth.JWTSecret, log, pingHandler, webhookHandler, messageHandler, streamHandler)
}

func runMigrations(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	log.Info("database schema is current")
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			log.Info("listening", slog.String("addr", cfg.Server.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
