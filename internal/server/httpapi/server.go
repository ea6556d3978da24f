// Package httpapi exposes the account flows over HTTP with a JSON envelope
// of {message, data, error}.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

// AccountService is the part of services.AccountService the handlers call.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput, origin services.RequestOrigin) (*services.RegisterResult, error)
	ResendVerification(ctx context.Context, accountID, toEmail string, origin services.RequestOrigin) (string, error)
	VerifyEmail(ctx context.Context, token, otp string) (*models.Account, error)
	Login(ctx context.Context, email, secret string) (*services.Session, error)
	CurrentAccount(ctx context.Context, sessionToken string) (*models.Account, error)
	GetAccount(ctx context.Context, sessionToken, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, sessionToken, id string, patch models.AccountPatch) (*models.Account, error)
}

const shutdownTimeout = 10 * time.Second

type Server struct {
	address  string
	accounts AccountService
	logger   logging.Logger
}

func NewServer(address string, l logging.Logger, accounts AccountService) *Server {
	return &Server{
		address:  address,
		accounts: accounts,
		logger:   l.With("module", "http_server"),
	}
}

// Handler returns the routed, logged handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/signup", s.signup)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("GET /auth/logout", s.logout)
	mux.HandleFunc("GET /auth/me", s.me)
	mux.HandleFunc("POST /auth/send-verification-email/{id}", s.sendVerificationEmail)
	mux.HandleFunc("GET /auth/email-verification/{token}", s.emailVerification)
	mux.HandleFunc("GET /users/{id}", s.getUser)
	mux.HandleFunc("PATCH /users/{id}", s.patchUser)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Message: "OK"})
	})

	return s.requestLogger(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
