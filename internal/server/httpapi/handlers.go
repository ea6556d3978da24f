package httpapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

//go:embed templates/verify_form.html
var verifyForm []byte

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

type response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Message: msg, Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// origin reports the scheme and host the client used, for building links.
func origin(r *http.Request) services.RequestOrigin {
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		proto = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	return services.RequestOrigin{Protocol: proto, Host: r.Host}
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := s.accounts.Register(r.Context(), in, origin(r))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrDuplicateAccount):
			writeError(w, http.StatusBadRequest, "User already exists.")
		// The account exists at this point, so these are never answered as
		// retryable even when the cause was a timeout.
		case errors.Is(err, common.ErrNotificationDispatch):
			writeError(w, http.StatusInternalServerError, "Verification Email failed to Send")
		case errors.Is(err, common.ErrAuditAppend):
			writeError(w, http.StatusInternalServerError, "Session creation failed")
		case common.IsTransient(err):
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			s.logger.Error(r.Context(), "signup", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if res.Session != nil {
		writeJSON(w, http.StatusCreated, response{Message: "Created", Data: res.Session})
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Message: "Created and Verification Email send",
		Data: map[string]any{
			"user":              res.Account,
			"verificationToken": res.VerificationToken,
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}

	session, err := s.accounts.Login(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case common.IsTransient(err):
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		case errors.Is(err, common.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid username or password.")
		case errors.Is(err, common.ErrAccountInactive):
			writeError(w, http.StatusUnauthorized, "Account is inactive")
		case errors.Is(err, common.ErrAccountNotFound):
			writeError(w, http.StatusUnauthorized, "Account does not exist")
		case errors.Is(err, common.ErrAuditAppend):
			writeError(w, http.StatusUnauthorized, "Failed to register Login Logs")
		default:
			s.logger.Error(r.Context(), "login", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.AccessTokenCookieName,
		Value:    session.SessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, response{Message: "Login success", Data: session})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// bearerToken reads the session token from the Authorization header, then
// from the access_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	account, err := s.accounts.CurrentAccount(r.Context(), token)
	if err != nil {
		if common.IsTransient(err) {
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "OK", Data: map[string]any{"user": account}})
}

type sendVerificationRequest struct {
	ToEmail string `json:"toEmail"`
}

func (s *Server) sendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req sendVerificationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	token, err := s.accounts.ResendVerification(r.Context(), r.PathValue("id"), req.ToEmail, origin(r))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case common.IsTransient(err):
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			s.logger.Error(r.Context(), "send verification email", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to send email")
		}
		return
	}

	writeJSON(w, http.StatusOK, response{
		Message: "Ok",
		Data:    map[string]any{"verificationToken": token},
	})
}

func (s *Server) emailVerification(w http.ResponseWriter, r *http.Request) {
	otp := r.URL.Query().Get("otp")
	if otp == "" && wantsHTML(r) {
		// The emailed link carries no code; browsers get a form that
		// resubmits the same URL with ?otp=.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(verifyForm)
		return
	}

	account, err := s.accounts.VerifyEmail(r.Context(), r.PathValue("token"), otp)
	if err != nil {
		if common.IsTransient(err) {
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify")
		return
	}

	writeJSON(w, http.StatusOK, response{
		Message: "User Verified",
		Data:    map[string]any{"verificationRes": account},
	})
}

// accountError maps the errors of the bearer-protected account routes.
func (s *Server) accountError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, common.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, "Account is inactive")
	case errors.Is(err, common.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account does not exist")
	case errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case common.IsTransient(err):
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		s.logger.Error(r.Context(), op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), token, r.PathValue("id"))
	if err != nil {
		s.accountError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "OK", Data: map[string]any{"user": account}})
}

type patchUserRequest struct {
	Active   *bool `json:"active"`
	Verified *bool `json:"verified"`
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req patchUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	patch := models.AccountPatch{Active: req.Active, Verified: req.Verified}
	account, err := s.accounts.UpdateAccount(r.Context(), token, r.PathValue("id"), patch)
	if err != nil {
		s.accountError(w, r, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Updated", Data: map[string]any{"user": account}})
}
