package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/policybot/handlers"
	"github.com/serisow/policybot/services/answer_service"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func SetupRoutes(service *answer_service.Service, shutdown func(), logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()

	systemHandler := handlers.NewSystemHandler(shutdown, logger)
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/shutdown", systemHandler.Shutdown).Methods("POST")

	answerHandler := handlers.NewAnswerHandler(service, logger)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/policy-answer", answerHandler.PolicyAnswer).Methods("POST")
	api.HandleFunc("/data-answer", answerHandler.DataAnswer).Methods("POST")
	api.HandleFunc("/web-answer", answerHandler.WebAnswer).Methods("POST")
	api.HandleFunc("/combined-answer", answerHandler.CombinedAnswer).Methods("POST")

	return r
}

func SetupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// ServeProduction serves HTTPS with certificates from Let's Encrypt until ctx
// is cancelled. Port 80 answers ACME challenges and redirects to HTTPS.
func ServeProduction(ctx context.Context, n *negroni.Negroni, cfg Config, logger *slog.Logger) error {
	if len(cfg.Domains) == 0 {
		return fmt.Errorf("production mode requires at least one domain")
	}

	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	challengeSrv := &http.Server{
		Addr:         ":80",
		Handler:      autocertManager.HTTPHandler(nil),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := challengeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ACME challenge server stopped", slog.String("error", err.Error()))
		}
	}()

	tlsConfig := &tls.Config{
		GetCertificate:   autocertManager.GetCertificate,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
		MinVersion:       tls.VersionTLS12,
	}

	srv := &http.Server{
		Addr:         ":443",
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return serve(ctx, logger, func() error { return srv.ListenAndServeTLS("", "") }, srv, challengeSrv)
}

// ServeDevelopment serves plain HTTP until ctx is cancelled.
func ServeDevelopment(ctx context.Context, s *http.Server, logger *slog.Logger) error {
	return serve(ctx, logger, s.ListenAndServe, s)
}

func serve(ctx context.Context, logger *slog.Logger, listen func() error, servers ...*http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("addr", servers[0].Addr))
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	return shutdownErr
}
