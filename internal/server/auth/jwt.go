// Package auth issues and verifies the signed, time-bounded tokens used for
// sessions, refresh and email verification. Tokens are stateless: validity is
// signature + expiry (+ embedded code for verification tokens).
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the typ claim.
const (
	KindSession      = "session"
	KindRefresh      = "refresh"
	KindVerification = "verification"
)

const (
	DefaultSessionTTL      = time.Hour
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	DefaultVerificationTTL = 10 * time.Minute
)

// Internal verification failures. All of them match common.ErrVerificationFailed.
var (
	ErrTokenInvalid   = fmt.Errorf("%w: token invalid", common.ErrVerificationFailed)
	ErrTokenExpired   = fmt.Errorf("%w: token expired", common.ErrVerificationFailed)
	ErrSecretMismatch = fmt.Errorf("%w: secret mismatch", common.ErrVerificationFailed)
	ErrWrongKind      = fmt.Errorf("%w: wrong token kind", common.ErrVerificationFailed)
)

// Claims are the registered claims plus the subject id, the token kind and,
// on verification tokens only, the one-time code.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Kind   string `json:"typ,omitempty"`
	OTP    string `json:"otp,omitempty"`
}

// TokenPair bundles a session token with its refresh token.
type TokenPair struct {
	SessionToken string
	RefreshToken string
}

type Service struct {
	secret     []byte
	now        func() time.Time
	sessionTTL time.Duration
	refreshTTL time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTTL = d
		}
	}
}

// NewService keeps its own copy of secret; the key is never changed afterwards.
func NewService(secret []byte, opts ...Option) *Service {
	s := &Service{
		secret:     append([]byte(nil), secret...),
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
		refreshTTL: DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken signs a token for subjectID valid for ttl. A non-empty
// embeddedSecret is stored verbatim in the otp claim.
func (s *Service) IssueToken(subjectID string, ttl time.Duration, embeddedSecret string) (string, error) {
	kind := KindSession
	if embeddedSecret != "" {
		kind = KindVerification
	}
	return s.issue(subjectID, ttl, kind, embeddedSecret)
}

// IssueSessionPair signs a session token and an independent, longer-lived
// refresh token for subjectID.
func (s *Service) IssueSessionPair(subjectID string) (TokenPair, error) {
	session, err := s.issue(subjectID, s.sessionTTL, KindSession, "")
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issue(subjectID, s.refreshTTL, KindRefresh, "")
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{SessionToken: session, RefreshToken: refresh}, nil
}

func (s *Service) issue(subjectID string, ttl time.Duration, kind, otp string) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("%w: empty subject id", common.ErrValidation)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: non-positive ttl", common.ErrValidation)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: subjectID,
		Kind:   kind,
		OTP:    otp,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature, then expiry, then, only when
// expectedSecret is non-empty, that it equals the embedded code exactly.
func (s *Service) VerifyToken(tokenString, expectedSecret string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	if expectedSecret != "" && subtle.ConstantTimeCompare([]byte(claims.OTP), []byte(expectedSecret)) != 1 {
		return nil, ErrSecretMismatch
	}

	return claims, nil
}

// SubjectFromAccessToken verifies a session token and returns its subject.
// Refresh and verification tokens are rejected.
func (s *Service) SubjectFromAccessToken(tokenString string) (string, error) {
	claims, err := s.VerifyToken(tokenString, "")
	if err != nil {
		return "", err
	}
	if claims.Kind != KindSession {
		return "", ErrWrongKind
	}
	return claims.UserID, nil
}
