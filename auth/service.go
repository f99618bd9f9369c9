// Package auth implements the issuer's account operations: registration,
// password login, refresh token exchange and token introspection.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token"
	"github.com/jrsteele09/go-token-trust/token/refresh"
	"github.com/jrsteele09/go-token-trust/users"
	"github.com/jrsteele09/go-token-trust/verifier"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const tokenTypeBearer = "bearer"

// Repos holds the repository dependencies of the Service
type Repos struct {
	Users         users.UserRepo
	RefreshTokens refresh.Repo
}

// RegisterRequest carries a new account's details.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

// LoginRequest carries password credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh. Refresh responses carry no
// new refresh token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service provides the issuer's account and token operations.
type Service struct {
	repos        Repos
	issuer       *token.Issuer
	refresh      *refresh.Manager
	validator    *verifier.Validator
	passwordCost int
	nowFunc      func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

type ServiceOption func(*Service)

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) ServiceOption {
	return func(s *Service) {
		s.passwordCost = cost
	}
}

// WithNowFunc sets the clock used when validating tokens (for testing).
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// NewService initializes a Service with required dependencies.
func NewService(repos Repos, issuer *token.Issuer, refreshManager *refresh.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.RefreshTokens == nil {
		return nil, errors.New("[NewService] RefreshTokens repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] issuer is required")
	}
	if refreshManager == nil {
		return nil, errors.New("[NewService] refresh manager is required")
	}

	s := &Service{
		repos:        repos,
		issuer:       issuer,
		refresh:      refreshManager,
		passwordCost: users.DefaultPasswordCost,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.validator = verifier.NewValidator(issuer,
		verifier.WithIssuer(issuer.Name()),
		verifier.WithNowFunc(s.nowFunc),
	)
	return s, nil
}

// Issuer returns the token issuer backing the service.
func (s *Service) Issuer() *token.Issuer {
	return s.issuer
}

// Register creates an active, non-admin account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	email := users.NormalizeEmail(req.Email)
	if err := users.ValidateEmail(email); err != nil {
		return nil, apperr.Wrapf(apperr.ErrInvalidRequest, "%v", err)
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, apperr.Wrapf(apperr.ErrWeakPassword, "%v", err)
	}

	hash, err := users.HashPasswordWithCost(req.Password, s.passwordCost)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] hash password")
	}

	var fullName *string
	if req.FullName != nil {
		if trimmed := strings.TrimSpace(*req.FullName); trimmed != "" {
			fullName = &trimmed
		}
	}

	user := &users.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Active:       true,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		if apperr.Is(err, apperr.ErrConflict) {
			return nil, apperr.ErrUserExists
		}
		return nil, errors.Wrap(err, "[Service.Register] create user")
	}
	log.Info().Int64("user_id", user.ID).Msg("registered user")
	return user, nil
}

// Login checks password credentials and returns an access token plus a new
// refresh token. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.repos.Users.GetByEmail(ctx, users.NormalizeEmail(req.Email))
	if apperr.Is(err, apperr.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison.
		users.CheckPasswordHash(req.Password, s.getDummyHash())
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] get user")
	}
	if !user.CheckPassword(req.Password) {
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, apperr.ErrUserInactive
	}

	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Create(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] create refresh token")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.issuer.AccessTokenExpiry() / time.Second),
	}, nil
}

// Refresh exchanges a refresh token for a new access token for the same
// subject. The refresh token itself is left untouched.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	record, err := s.refresh.Redeem(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByID(ctx, record.SubjectID)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] get user")
	}
	if !user.Active {
		return nil, apperr.ErrUserInactive
	}

	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.issuer.AccessTokenExpiry() / time.Second),
	}, nil
}

// ValidateToken verifies an access token minted by this issuer.
func (s *Service) ValidateToken(ctx context.Context, raw string) (*token.Claims, error) {
	return s.validator.Validate(ctx, raw)
}

// CurrentUser resolves the user an access token was issued to.
func (s *Service) CurrentUser(ctx context.Context, raw string) (*users.User, error) {
	claims, err := s.ValidateToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	id, err := claims.SubjectID()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// GetUser looks a user up by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*users.User, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if apperr.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.GetUser] get user")
	}
	return user, nil
}

func (s *Service) issueAccessToken(user *users.User) (string, error) {
	accessToken, err := s.issuer.IssueAccessToken(token.Subject{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.FullName,
		Admin: user.Admin,
	}, 0)
	if err != nil {
		return "", errors.Wrap(err, "[Service] issue access token")
	}
	return accessToken, nil
}

func (s *Service) getDummyHash() string {
	s.dummyHashOnce.Do(func() {
		hash, err := users.HashPasswordWithCost("dummy-password-for-timing", s.passwordCost)
		if err != nil {
			log.Err(err).Msg("failed to build timing hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
