// Package services contains server-side business logic. This file implements
// AccountService, which handles registration, email verification, credential
// checks and issuing session/refresh tokens with a login audit entry.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	mailer "github.com/dmitrijs2005/gatekeeper/internal/server/mail"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/password"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/loginlogs"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/verifications"
	"github.com/google/uuid"
)

// VerificationSubject is the subject line of the verification email.
const VerificationSubject = "Account Verification Required"

// RegisterInput is what a client submits to create an account.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate checks the address syntax and that a password was given.
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return fmt.Errorf("%w: email is malformed", common.ErrValidation)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	if len(in.Password) > password.MaxSecretBytes {
		return fmt.Errorf("%w: password longer than %d bytes", common.ErrValidation, password.MaxSecretBytes)
	}
	return nil
}

// normalizeEmail folds case and surrounding space so lookups do not depend
// on how the gateway compares addresses.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestOrigin is only used to build the verification link.
type RequestOrigin struct {
	Protocol string
	Host     string
}

func (o RequestOrigin) verificationLink(token string) string {
	return fmt.Sprintf("%s://%s/auth/email-verification/%s", o.Protocol, o.Host, token)
}

// Session is an established login: both tokens and the account they belong to.
type Session struct {
	SessionToken string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	Account      *models.Account `json:"user"`
}

// RegisterResult carries either a verification token or a session, depending
// on whether email verification is required.
type RegisterResult struct {
	Account           *models.Account
	VerificationToken string
	Session           *Session
}

// AccountService orchestrates the account flows. It holds no per-request
// state and is safe for concurrent use.
type AccountService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	loginLogs   loginlogs.Repository
	tokens      *auth.Service
	hasher      password.Hasher
	sender      mailer.Sender
	renderer    *mailer.Renderer
	consumed    verifications.Store
	logger      logging.Logger
	now         func() time.Time

	admins map[string]bool

	emailVerification bool
	verificationTTL   time.Duration
	otpMin            int64
	otpSpan           int64
	gatewayTimeout    time.Duration
}

type Option func(*AccountService)

// WithLoginLogs replaces the relational login log, e.g. with the Mongo one.
func WithLoginLogs(r loginlogs.Repository) Option {
	return func(s *AccountService) { s.loginLogs = r }
}

func WithHasher(h password.Hasher) Option {
	return func(s *AccountService) { s.hasher = h }
}

func WithMailer(sender mailer.Sender, renderer *mailer.Renderer) Option {
	return func(s *AccountService) {
		s.sender = sender
		if renderer != nil {
			s.renderer = renderer
		}
	}
}

// WithVerificationStore enables single-use verification tokens.
func WithVerificationStore(st verifications.Store) Option {
	return func(s *AccountService) { s.consumed = st }
}

func WithLogger(l logging.Logger) Option {
	return func(s *AccountService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService constructs an AccountService using repositories, the
// token service and server config. Collaborators not given as options fall
// back to bcrypt, the relational login log, a log-only mail sender and
// replayable verification tokens.
func NewAccountService(db dbx.DBTX, m repomanager.RepositoryManager, tokens *auth.Service, cfg *config.Config, opts ...Option) *AccountService {
	s := &AccountService{
		db:                db,
		repomanager:       m,
		tokens:            tokens,
		hasher:            password.NewBcrypt(password.DefaultCost),
		consumed:          verifications.NoopStore{},
		logger:            logging.Nop(),
		now:               time.Now,
		emailVerification: cfg.EmailVerification,
		verificationTTL:   cfg.VerificationTokenTTL,
		otpMin:            cfg.OTPMin,
		otpSpan:           cfg.OTPSpan,
		gatewayTimeout:    cfg.GatewayTimeout,
	}
	s.admins = make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			s.admins[e] = true
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = auth.DefaultVerificationTTL
	}
	if s.loginLogs == nil {
		s.loginLogs = m.LoginLogs(db)
	}
	if s.sender == nil {
		s.sender = mailer.NewLogSender(cfg.MailFrom, s.logger)
	}
	if s.renderer == nil {
		s.renderer = mailer.DefaultRenderer()
	}
	s.logger = s.logger.With("module", "accounts")
	return s
}

func (s *AccountService) accounts() accounts.Repository {
	return s.repomanager.Accounts(s.db)
}

// call runs one gateway operation under the gateway timeout and labels
// transport failures as transient.
func (s *AccountService) call(ctx context.Context, job models.Job, fn func(ctx context.Context) error) error {
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}
	s.logger.Debug(ctx, "gateway call", job.LogArgs()...)
	return common.Classify(fn(ctx))
}

// Register creates an account unless the email is taken. With email
// verification on it sends a one-time code and returns the verification
// token; otherwise it opens a session right away.
//
// The email pre-check is best effort: two concurrent registrations may both
// pass it, and the store's unique constraint decides. When the notification
// cannot be sent the account stays created and is returned with the error.
// Failures after the account is created are never marked transient, since
// repeating the request can only hit the duplicate check.
func (s *AccountService) Register(ctx context.Context, in RegisterInput, origin RequestOrigin) (*RegisterResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)

	err := s.call(ctx, models.Job{Action: "findByEmail"}, func(ctx context.Context) error {
		_, err := s.accounts().FindByEmail(ctx, email)
		return err
	})
	switch {
	case err == nil:
		return nil, common.ErrDuplicateAccount
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	account := &models.Account{
		UID:          uuid.NewString(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: digest,
		Verified:     !s.emailVerification,
		Active:       true,
	}

	var created *models.Account
	err = s.call(ctx, models.Job{Action: "create", Body: account.UID}, func(ctx context.Context) error {
		var err error
		created, err = s.accounts().Create(ctx, account)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info(ctx, "account created", "id", created.ID, "verified", created.Verified)

	if s.emailVerification {
		token, err := s.sendVerification(ctx, created, created.Email, origin)
		if err != nil {
			return &RegisterResult{Account: created}, settled(err)
		}
		return &RegisterResult{Account: created, VerificationToken: token}, nil
	}

	session, err := s.CreateSession(ctx, created.ID)
	if err != nil {
		return &RegisterResult{Account: created}, settled(err)
	}
	return &RegisterResult{Account: created, Session: session}, nil
}

// settled drops the transient label from an error raised after the account
// was created, keeping the domain kind so callers still see what failed.
func settled(err error) error {
	if !common.IsTransient(err) {
		return err
	}
	for _, kind := range []error{common.ErrNotificationDispatch, common.ErrAuditAppend, common.ErrAccountNotFound} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%w: %v", kind, err)
		}
	}
	return fmt.Errorf("%w: %v", common.ErrInternal, err)
}

// ResendVerification issues a fresh code for an unverified account. toEmail
// may be empty; when set it must be the account's own address.
func (s *AccountService) ResendVerification(ctx context.Context, accountID, toEmail string, origin RequestOrigin) (string, error) {
	account, err := s.findByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.Verified {
		return "", fmt.Errorf("%w: account already verified", common.ErrValidation)
	}
	if toEmail != "" && normalizeEmail(toEmail) != normalizeEmail(account.Email) {
		return "", fmt.Errorf("%w: address does not belong to the account", common.ErrValidation)
	}
	return s.sendVerification(ctx, account, account.Email, origin)
}

func (s *AccountService) sendVerification(ctx context.Context, account *models.Account, to string, origin RequestOrigin) (string, error) {
	code, err := common.RandomCode(s.otpMin, s.otpSpan)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	otp := strconv.FormatInt(code, 10)

	token, err := s.tokens.IssueToken(account.ID, s.verificationTTL, otp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	body, err := s.renderer.Render(mailer.VerificationData{
		OTP:              otp,
		VerificationLink: origin.verificationLink(token),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNotificationDispatch, err)
	}

	err = s.call(ctx, models.Job{Action: "sendMail", ID: account.ID}, func(ctx context.Context) error {
		return s.sender.Send(ctx, to, VerificationSubject, body)
	})
	if err != nil {
		s.logger.Error(ctx, "verification email not sent", "id", account.ID, "error", err)
		return "", fmt.Errorf("%w: %w", common.ErrNotificationDispatch, err)
	}

	s.logger.Info(ctx, "verification email sent", "id", account.ID)
	return token, nil
}

// VerifyEmail marks the token's account verified when token and otp match.
// Every token problem is reported as common.ErrVerificationFailed; the exact
// cause is only logged. With a verification store configured a token can be
// redeemed once, and it is spent even if the account update then fails.
func (s *AccountService) VerifyEmail(ctx context.Context, token, otp string) (*models.Account, error) {
	if otp == "" {
		s.logger.Warn(ctx, "verification rejected", "reason", "missing otp")
		return nil, common.ErrVerificationFailed
	}

	claims, err := s.tokens.VerifyToken(token, otp)
	if err != nil {
		s.logger.Warn(ctx, "verification rejected", "reason", err.Error())
		return nil, common.ErrVerificationFailed
	}
	if claims.Kind != auth.KindVerification {
		s.logger.Warn(ctx, "verification rejected", "reason", "wrong token kind", "kind", claims.Kind)
		return nil, common.ErrVerificationFailed
	}

	var fresh bool
	err = s.call(ctx, models.Job{Action: "consumeVerification", ID: claims.UserID}, func(ctx context.Context) error {
		var err error
		fresh, err = s.consumed.Consume(ctx, claims.ID, claims.ExpiresAt.Sub(s.now()))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("consume verification: %w", err)
	}
	if !fresh {
		s.logger.Warn(ctx, "verification rejected", "reason", "token already used", "id", claims.UserID)
		return nil, common.ErrVerificationFailed
	}

	verified := true
	var account *models.Account
	err = s.call(ctx, models.Job{Action: "update", ID: claims.UserID}, func(ctx context.Context) error {
		var err error
		account, err = s.accounts().Update(ctx, claims.UserID, models.AccountPatch{Verified: &verified})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info(ctx, "account verified", "id", account.ID)
	return account, nil
}

// Authenticate checks email and password. An unknown email and a wrong
// password both yield common.ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, secret string) (*models.Account, error) {
	email = normalizeEmail(email)
	var account *models.Account
	err := s.call(ctx, models.Job{Action: "findByEmail"}, func(ctx context.Context) error {
		var err error
		account, err = s.accounts().FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "login attempt failed", "reason", "unknown email")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !s.hasher.Verify(secret, account.PasswordHash) {
		s.logger.Warn(ctx, "login attempt failed", "reason", "password mismatch", "id", account.ID)
		return nil, common.ErrInvalidCredentials
	}
	return account, nil
}

// CreateSession issues a session and refresh token for an active account and
// records the login. The login log entry must be written before the session
// counts as established: if the append fails the tokens are dropped and
// common.ErrAuditAppend is returned.
func (s *AccountService) CreateSession(ctx context.Context, accountID string) (*Session, error) {
	account, err := s.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		s.logger.Warn(ctx, "session refused", "reason", "inactive", "id", account.ID)
		return nil, common.ErrAccountInactive
	}

	pair, err := s.tokens.IssueSessionPair(account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	entry := models.LoginLogEntry{UserID: account.ID, UserName: account.Name, CreatedAt: s.now().UTC()}
	err = s.call(ctx, models.Job{Action: "appendLoginLog", ID: account.ID}, func(ctx context.Context) error {
		return s.loginLogs.Append(ctx, entry)
	})
	if err != nil {
		s.logger.Error(ctx, "login log not written, session discarded", "id", account.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrAuditAppend, err)
	}

	s.logger.Info(ctx, "session created", "id", account.ID)
	return &Session{SessionToken: pair.SessionToken, RefreshToken: pair.RefreshToken, Account: account}, nil
}

// Login is Authenticate followed by CreateSession.
func (s *AccountService) Login(ctx context.Context, email, secret string) (*Session, error) {
	account, err := s.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}
	return s.CreateSession(ctx, account.ID)
}

// CurrentAccount resolves the account behind a session token.
func (s *AccountService) CurrentAccount(ctx context.Context, sessionToken string) (*models.Account, error) {
	id, err := s.tokens.SubjectFromAccessToken(sessionToken)
	if err != nil {
		return nil, common.ErrVerificationFailed
	}
	return s.findByID(ctx, id)
}

// GetAccount returns account id to the holder of sessionToken. Accounts may
// read themselves; administrators may read any account.
func (s *AccountService) GetAccount(ctx context.Context, sessionToken, id string) (*models.Account, error) {
	requester, err := s.requester(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if requester.ID != id && !s.isAdmin(requester) {
		s.logger.Warn(ctx, "account read refused", "requester", requester.ID, "id", id)
		return nil, common.ErrForbidden
	}
	if requester.ID == id {
		return requester, nil
	}
	return s.findByID(ctx, id)
}

// UpdateAccount is the administrative path that sets the verified and
// active flags. Only administrators may call it.
func (s *AccountService) UpdateAccount(ctx context.Context, sessionToken, id string, patch models.AccountPatch) (*models.Account, error) {
	requester, err := s.requester(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if !s.isAdmin(requester) {
		s.logger.Warn(ctx, "account update refused", "requester", requester.ID, "id", id)
		return nil, common.ErrForbidden
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}

	var account *models.Account
	err = s.call(ctx, models.Job{Action: "update", ID: id}, func(ctx context.Context) error {
		var err error
		account, err = s.accounts().Update(ctx, id, patch)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.logger.Info(ctx, "account updated", "id", account.ID, "by", requester.ID,
		"verified", account.Verified, "active", account.Active)
	return account, nil
}

// requester resolves the caller of an authenticated operation. Inactive
// accounts keep valid tokens until expiry but are refused here.
func (s *AccountService) requester(ctx context.Context, sessionToken string) (*models.Account, error) {
	account, err := s.CurrentAccount(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil, common.ErrVerificationFailed
		}
		return nil, err
	}
	if !account.Active {
		return nil, common.ErrAccountInactive
	}
	return account, nil
}

func (s *AccountService) isAdmin(account *models.Account) bool {
	return s.admins[normalizeEmail(account.Email)]
}

func (s *AccountService) findByID(ctx context.Context, id string) (*models.Account, error) {
	var account *models.Account
	err := s.call(ctx, models.Job{Action: "findById", ID: id}, func(ctx context.Context) error {
		var err error
		account, err = s.accounts().FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}
