package services

import (
	"context"

	"examprep/internal/config"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// UserService authenticates against the fixed credential list in the
// configuration. The core services treat usernames as opaque and never
// validate membership; only the HTTP surface goes through here.
type UserService struct {
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserService creates a UserService on the given configuration.
func NewUserService(cfg *config.Config, logger *observability.Logger) *UserService {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &UserService{cfg: cfg, logger: logger}
}

// Authenticate verifies the username/password pair against the configured
// credentials and returns the canonical username. Fails with
// contextutils.ErrInvalidCredentials on any mismatch; the reason is not
// distinguished to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (result0 string, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "Authenticate",
		observability.AttributeUsername(username),
	)
	defer observability.FinishSpan(span, &err)

	user, ok := s.cfg.LookupUser(username)
	if !ok {
		s.logger.Warn(ctx, "Login attempt for unknown user", map[string]interface{}{"username": username})
		return "", contextutils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn(ctx, "Login attempt with wrong password", map[string]interface{}{"username": user.Username})
		return "", contextutils.ErrInvalidCredentials
	}

	s.logger.Info(ctx, "User authenticated", map[string]interface{}{"username": user.Username})
	return user.Username, nil
}

// Usernames returns the configured usernames, sorted.
func (s *UserService) Usernames() []string {
	return s.cfg.Usernames()
}

// HashPassword produces a bcrypt hash suitable for the credentials file.
// Used by the admin CLI when provisioning users.
func HashPassword(password string) (result0 string, err error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to hash password")
	}
	return string(hash), nil
}
