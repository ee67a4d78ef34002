package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clinicq/ehr-service/internal/authz"
	"clinicq/ehr-service/internal/config"
	"clinicq/ehr-service/internal/httpapi"
	"clinicq/ehr-service/internal/hub"
	"clinicq/ehr-service/internal/queue"
	"clinicq/ehr-service/internal/store/postgres"
	"clinicq/ehr-service/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("ehr-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	clinicHub := hub.New()
	svc := queue.NewService(queue.Options{
		Repository: store,
		Authorizer: authz.New(),
		Notifier:   clinicHub,
	})

	location, err := time.LoadLocation(cfg.QueueTimezone)
	if err != nil {
		log.Printf("timezone %q not found, using UTC", cfg.QueueTimezone)
		location = time.UTC
	}
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.Load(loadCtx, time.Now().In(location)); err != nil {
		log.Fatalf("load queue: %v", err)
	}
	loadCancel()

	handler := httpapi.NewHandler(httpapi.Options{
		Queue:      svc,
		Patients:   store,
		Clinical:   store,
		Auth:       store,
		Reports:    store,
		Events:     store,
		SessionTTL: cfg.SessionTTL,
		ListLimit:  cfg.ListLimit,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:   cfg.RateLimitPerMinute,
		IPBurst:       cfg.RateLimitBurst,
		UserPerMinute: cfg.UserRateLimitPerMinute,
		UserBurst:     cfg.UserRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		req := session.Request()
		sessionID := sessionIDFromRequest(req)
		if sessionID == "" {
			_ = session.Close(4001, "missing session")
			return
		}
		if _, err := store.GetSession(context.Background(), sessionID); err != nil {
			_ = session.Close(4002, "invalid session")
			return
		}

		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		clinicHub.Register(client)
		defer clinicHub.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				clinicHub.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			clinicHub.UpdateSubscription(client, hub.Subscription{
				ServiceType: parsed.ServiceType,
				Team:        parsed.Team,
			})
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	chain := httpapi.AuthMiddleware(store, mux)
	chain = limiter.Middleware(chain)
	chain = httpapi.LoggingMiddleware(chain)
	otelHandler := otelhttp.NewHandler(chain, "ehr-service")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("ehr-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
