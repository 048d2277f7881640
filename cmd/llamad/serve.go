package main

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"llamad/internal/auth"
	"llamad/internal/common/fsutil"
	"llamad/internal/config"
	"llamad/internal/httpapi"
	"llamad/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	addr           string
	llamaBin       string
	llmStorage     string
	staticDir      string
	tlsCert        string
	tlsKey         string
	tlsCA          string
	requestTimeout int
	cors           bool
	corsOrigins    []string
}

func buildServeCmd(a *app) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP daemon",
		Example: "  llamad serve --addr :8080 --models-file data/models.json --llama-bin ./main",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, &a.cfg)
			if err := a.cfg.ExpandPaths(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address (defaults LLAMAD_ADDR or "+config.DefaultAddr+")")
	fl.StringVar(&f.llamaBin, "llama-bin", "", "llama.cpp executable (defaults LLAMAD_LLAMA_BIN or "+config.DefaultLlamaBin+")")
	fl.StringVar(&f.llmStorage, "llm-storage", "", "Directory llama.cpp loads models from; used to name the model in loading logs")
	fl.StringVar(&f.staticDir, "static-dir", "", "Serve files from this directory for unmatched paths")
	fl.StringVar(&f.tlsCert, "tls-cert", "", "TLS certificate file")
	fl.StringVar(&f.tlsKey, "tls-key", "", "TLS key file (unencrypted PEM)")
	fl.StringVar(&f.tlsCA, "tls-ca", "", "PEM bundle of intermediate certificates served after the leaf")
	fl.IntVar(&f.requestTimeout, "request-timeout", 0, "Seconds before an unanswered request is rejected and the process stopped (0 disables)")
	fl.BoolVar(&f.cors, "cors", false, "Enable CORS")
	fl.StringSliceVar(&f.corsOrigins, "cors-origins", nil, "Allowed CORS origins (comma separated)")
	return cmd
}

// apply overrides cfg with the flags the user set explicitly.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fl.Changed("llama-bin") {
		cfg.LlamaBin = f.llamaBin
	}
	if fl.Changed("llm-storage") {
		cfg.LLMStorage = f.llmStorage
	}
	if fl.Changed("static-dir") {
		cfg.StaticDir = f.staticDir
	}
	if fl.Changed("tls-cert") {
		cfg.TLSCertFile = f.tlsCert
	}
	if fl.Changed("tls-key") {
		cfg.TLSKeyFile = f.tlsKey
	}
	if fl.Changed("tls-ca") {
		cfg.TLSCAFile = f.tlsCA
	}
	if fl.Changed("request-timeout") {
		cfg.RequestTimeoutSeconds = f.requestTimeout
	}
	if fl.Changed("cors") {
		cfg.CORSEnabled = f.cors
	}
	if fl.Changed("cors-origins") {
		cfg.CORSOrigins = f.corsOrigins
	}
}

// newSupervisor wires a supervisor to cfg.
func (a *app) newSupervisor(reg prometheus.Registerer) *supervisor.Supervisor {
	l := a.log.With().Str("component", "supervisor").Logger()
	return supervisor.New(supervisor.Config{
		LlamaBin:       a.cfg.LlamaBin,
		ModelsFile:     a.cfg.ModelsFile,
		LLMStorage:     a.cfg.LLMStorage,
		Marker:         a.cfg.Marker,
		Delimiter:      a.cfg.Delimiter,
		RequestTimeout: a.cfg.RequestTimeout(),
		StopGrace:      a.cfg.StopGrace(),
		Logger:         &l,
		Registerer:     reg,
	})
}

// configureHTTP pushes cfg into the httpapi package settings.
func (a *app) configureHTTP(ctx context.Context) {
	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(a.cfg.LogLevel)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(a.cfg.CORSEnabled, a.cfg.CORSOrigins, nil, nil)
	httpapi.SetStaticDir(a.cfg.StaticDir)
	httpapi.SetBaseContext(ctx)
	if a.cfg.AuthKeysFile != "" {
		httpapi.SetAuthStore(auth.NewStore(a.cfg.AuthKeysFile))
	} else {
		httpapi.SetAuthStore(nil)
	}
}

// loadTLSConfig loads the key pair and appends the CA bundle, if any, to the served chain.
func loadTLSConfig(cfg config.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	if cfg.TLSCAFile != "" {
		raw, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read tls ca file: %w", err)
		}
		n := 0
		for block, rest := pem.Decode(raw); block != nil; block, rest = pem.Decode(rest) {
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert.Certificate = append(cert.Certificate, block.Bytes)
			n++
		}
		if n == 0 {
			return nil, fmt.Errorf("tls ca file %s has no certificates", cfg.TLSCAFile)
		}
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.UseTLS() && !(fsutil.PathExists(a.cfg.TLSCertFile) && fsutil.PathExists(a.cfg.TLSKeyFile)) {
		return fmt.Errorf("tls certificate %s or key %s not found", a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
	}
	if a.cfg.StaticDir != "" && !fsutil.PathExists(a.cfg.StaticDir) {
		a.log.Warn().Str("static_dir", a.cfg.StaticDir).Msg("static directory does not exist")
	}
	var tlsCfg *tls.Config
	if a.cfg.UseTLS() {
		c, err := loadTLSConfig(a.cfg)
		if err != nil {
			return err
		}
		tlsCfg = c
	}
	a.configureHTTP(ctx)
	sup := a.newSupervisor(prometheus.DefaultRegisterer)
	if err := sup.LoadModels(ctx); err != nil {
		// /models retries the load on every call.
		a.log.Warn().Err(err).Str("models_file", a.cfg.ModelsFile).Msg("initial catalog load failed")
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(httpapi.NewService(sup)),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsCfg,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", a.cfg.Addr).
			Bool("tls", a.cfg.UseTLS()).
			Str("models_file", a.cfg.ModelsFile).
			Bool("auth", a.cfg.AuthKeysFile != "").
			Msg("llamad listening")
		var err error
		if a.cfg.UseTLS() {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := sup.Close(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("unload on shutdown failed")
	}
	return serveErr
}
