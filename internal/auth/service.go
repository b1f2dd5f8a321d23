package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/resumehub/resumehub/internal/shared"
	"github.com/resumehub/resumehub/internal/token"
	"github.com/resumehub/resumehub/internal/users"
)

const bearerPrefix = "Bearer "

// UserStore is the cache-aside user repository the orchestrator reads
// and writes users through.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (users.User, error)
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Create(ctx context.Context, u users.User) (users.User, error)
	RecordLogin(ctx context.Context, id int64) (users.User, error)
}

// FederatedStore persists provider links for federated accounts.
type FederatedStore interface {
	FindFederated(ctx context.Context, provider, providerID string) (users.FederatedIdentity, error)
	CreateFederated(ctx context.Context, link users.FederatedIdentity) (users.FederatedIdentity, error)
	UpdateFederatedTokens(ctx context.Context, id int64, accessToken, refreshToken string) error
}

// Service composes the token codec, the revocation blacklist, the user
// store and the external identity verifier into the signup, login,
// federated-login, logout and validation flows.
type Service struct {
	logger    *slog.Logger
	users     UserStore
	links     FederatedStore
	codec     *token.Codec
	blacklist *token.Blacklist
	verifier  IdentityVerifier
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, store UserStore, links FederatedStore, codec *token.Codec, blacklist *token.Blacklist, verifier IdentityVerifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger,
		users:     store,
		links:     links,
		codec:     codec,
		blacklist: blacklist,
		verifier:  verifier,
		now:       time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Signup registers a local-credential account and issues its first token.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (AuthResponse, error) {
	_, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return AuthResponse{}, shared.ErrDuplicateEmail
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return AuthResponse{}, fmt.Errorf("auth: signup lookup: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("auth: hash password: %w", err)
	}
	created, err := s.users.Create(ctx, users.User{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		EmailVerified: false,
		PasswordHash:  &hash,
	})
	if err != nil {
		return AuthResponse{}, err
	}
	return s.respond(created)
}

// Login authenticates local credentials. A missing account surfaces as
// ErrNotFound and a bad password as ErrInvalidCredentials; the HTTP
// boundary collapses both into one signal.
func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return AuthResponse{}, err
	}
	if user.PasswordHash == nil {
		// Federated-only account, no local credential to match.
		return AuthResponse{}, shared.ErrInvalidCredentials
	}
	if err := CheckPassword(*user.PasswordHash, req.Password); err != nil {
		return AuthResponse{}, err
	}
	logged, err := s.users.RecordLogin(ctx, user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return s.respond(logged)
}

// LoginWithGoogle authenticates a Firebase-verified Google identity,
// linking or creating the local account as needed. Email equality is
// treated as proof of same-person identity, so an existing local account
// with the asserted email is merged rather than duplicated.
func (s *Service) LoginWithGoogle(ctx context.Context, idToken string) (AuthResponse, error) {
	claims, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return AuthResponse{}, shared.ErrTokenVerification
	}

	user, err := s.resolveFederated(ctx, claims, idToken)
	if err != nil {
		return AuthResponse{}, err
	}

	logged, err := s.users.RecordLogin(ctx, user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return s.respond(logged)
}

func (s *Service) resolveFederated(ctx context.Context, claims FederatedClaims, idToken string) (users.User, error) {
	link, err := s.links.FindFederated(ctx, claims.Provider, claims.SubjectID)
	switch {
	case err == nil:
		user, err := s.users.FindByID(ctx, link.UserID)
		if err != nil {
			return users.User{}, err
		}
		if err := s.links.UpdateFederatedTokens(ctx, link.ID, idToken, link.RefreshToken); err != nil {
			s.logger.Warn("refresh federated tokens", slog.Int64("link_id", link.ID), slog.Any("error", err))
		}
		return user, nil
	case errors.Is(err, shared.ErrNotFound):
	default:
		return users.User{}, err
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		// Existing local account with the same email: attach the link.
	case errors.Is(err, shared.ErrNotFound):
		first, last := splitDisplayName(claims.DisplayName)
		user, err = s.users.Create(ctx, users.User{
			FirstName:     first,
			LastName:      last,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
			PasswordHash:  nil,
		})
		if err != nil {
			return users.User{}, err
		}
	default:
		return users.User{}, err
	}

	if _, err := s.links.CreateFederated(ctx, users.FederatedIdentity{
		UserID:      user.ID,
		Provider:    claims.Provider,
		ProviderID:  claims.SubjectID,
		AccessToken: idToken,
	}); err != nil {
		return users.User{}, err
	}
	return user, nil
}

// Logout revokes the presented token for its remaining lifetime. An
// already-expired token is a no-op, and revoking twice rewrites the same
// key, so the operation is idempotent.
func (s *Service) Logout(ctx context.Context, presented string) error {
	raw := StripBearer(presented)
	expiresAt, err := s.codec.ExpiresAt(raw)
	if err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	return s.blacklist.Revoke(ctx, raw, ttl)
}

// IsValidToken reports whether a token should still be honoured.
// Revocation is checked first and dominates: a revoked-but-unexpired
// token is never valid. Invalidity is a normal outcome, not an error.
func (s *Service) IsValidToken(ctx context.Context, presented string) (bool, error) {
	raw := StripBearer(presented)
	revoked, err := s.blacklist.IsRevoked(ctx, raw)
	if err != nil {
		return false, err
	}
	if revoked {
		return false, nil
	}
	return s.codec.Verify(raw), nil
}

// CurrentUser resolves the account behind a presented token.
func (s *Service) CurrentUser(ctx context.Context, presented string) (users.User, error) {
	raw := StripBearer(presented)
	valid, err := s.IsValidToken(ctx, raw)
	if err != nil {
		return users.User{}, err
	}
	if !valid {
		return users.User{}, shared.ErrMalformedToken
	}
	email, err := s.codec.Subject(raw)
	if err != nil {
		return users.User{}, err
	}
	return s.users.FindByEmail(ctx, email)
}

func (s *Service) respond(u users.User) (AuthResponse, error) {
	signed, err := s.codec.Issue(u.Email, u.ID)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("auth: issue token: %w", err)
	}
	return AuthResponse{Token: signed, User: toUserResponse(u)}, nil
}

// StripBearer removes the transport prefix from an Authorization header
// value; bare tokens pass through unchanged.
func StripBearer(presented string) string {
	presented = strings.TrimSpace(presented)
	return strings.TrimPrefix(presented, bearerPrefix)
}

// splitDisplayName derives first and last name from a provider display
// name, splitting on the first space. The placeholder matches accounts
// provisioned without any display name.
func splitDisplayName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "firebase User", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
