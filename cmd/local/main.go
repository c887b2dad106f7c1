package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"talk-bridge/internal/app"
	"talk-bridge/internal/attachment"
	"talk-bridge/internal/config"
)

type proxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration ----
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	h, err := app.NewHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("starting local server", "addr", srv.Addr, "mode", cfg.ReplyMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", "err", err)
	}
}

func newRouter(h proxyHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Correlation-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/talk", proxy(h))
	return r
}

// proxy adapts a plain HTTP request to the API Gateway event the handler
// expects. Bodies are always passed base64 encoded so binary uploads survive.
func proxy(h proxyHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := attachment.ReadAllWithLimit(r.Body, attachment.MaxBytes+1<<20)
		if err != nil {
			http.Error(w, `{"error":"Request body too large.","code":"VALIDATION_ERROR"}`, http.StatusRequestEntityTooLarge)
			return
		}

		headers := make(map[string]string, len(r.Header))
		for k, v := range r.Header {
			if len(v) > 0 {
				headers[k] = v[0]
			}
		}
		if _, ok := headers["X-Correlation-Id"]; !ok {
			if id := middleware.GetReqID(r.Context()); id != "" {
				headers["X-Correlation-Id"] = id
			}
		}

		resp, err := h.Handle(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:      r.Method,
			Path:            r.URL.Path,
			Headers:         headers,
			Body:            base64.StdEncoding.EncodeToString(body),
			IsBase64Encoded: true,
		})
		if err != nil {
			slog.ErrorContext(r.Context(), "handler failed", "err", err)
			http.Error(w, `{"error":"Internal server error.","code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
