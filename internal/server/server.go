// Package server assembles the auth service and runs its HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MockThePlank/passkey-playground/internal/auth/api/httpapi"
	"github.com/MockThePlank/passkey-playground/internal/auth/ceremony"
	"github.com/MockThePlank/passkey-playground/internal/auth/passkey"
	"github.com/MockThePlank/passkey-playground/internal/auth/session"
	"github.com/MockThePlank/passkey-playground/internal/auth/storage/sqlite"
)

// sweepInterval is how often expired sessions are dropped.
const sweepInterval = 10 * time.Minute

// Server hosts the passkey auth service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	sessions   *session.Manager
}

// New creates a configured server listening on cfg.ListenAddr.
func New(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	verifier, err := ceremony.NewVerifier(passkey.LoadConfigFromEnv())
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure verifier: %w", err)
	}
	ceremonies, err := ceremony.NewService(ceremony.Config{
		Verifier:    verifier,
		Users:       store,
		Credentials: store,
	})
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure ceremonies: %w", err)
	}
	sessions, err := session.NewManager(session.Config{
		Secret: []byte(cfg.SessionSecret),
		TTL:    cfg.SessionTTL,
		Secure: cfg.SecureCookies,
	})
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure sessions: %w", err)
	}
	handler, err := httpapi.New(sessions, ceremonies)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure handler: %w", err)
	}

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: handler.Routes()},
		store:      store,
		sessions:   sessions,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	go s.sweepSessions(serverCtx)

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// sweepSessions periodically drops expired sessions.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Sweep(time.Now()); removed > 0 {
				log.Printf("swept %d expired sessions", removed)
			}
		}
	}
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}
