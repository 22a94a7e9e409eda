package service

import (
	"errors"
	"regexp"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// AuthService is the trivial in-memory credential collaborator: register an
// email, get a generated password back, log in with the pair.
type AuthService struct {
	users  core.UserStore
	logger logging.Logger
}

func NewAuthService(users core.UserStore, logger logging.Logger) *AuthService {
	return &AuthService{users: users, logger: logger}
}

// Register validates the email and stores a generated password for it.
// Registering an existing email rotates the password.
func (s *AuthService) Register(email string) (string, error) {
	if !emailPattern.MatchString(email) {
		return "", core.ErrInvalidEmail
	}

	password := uuid.NewString()[:8]
	if err := s.users.SaveUser(&core.User{Email: email, Password: password}); err != nil {
		return "", err
	}
	s.logger.Info("User registered", "email", email)
	return password, nil
}

// UserExists reports whether the email is registered. The login protocol
// confirms the email before the client sends the password.
func (s *AuthService) UserExists(email string) (bool, error) {
	if _, err := s.users.GetUser(email); err != nil {
		return false, err
	}
	return true, nil
}

// Login checks the email/password pair. ErrEmailNotFound and ErrLoginFailed
// are distinct so the session can reply with the matching token.
func (s *AuthService) Login(email, password string) error {
	user, err := s.users.GetUser(email)
	if err != nil {
		if errors.Is(err, core.ErrEmailNotFound) {
			s.logger.Info("Login failed, email not found", "email", email)
		}
		return err
	}
	if user.Password != password {
		s.logger.Info("Login failed, incorrect password", "email", email)
		return core.ErrLoginFailed
	}
	s.logger.Info("Login successful", "email", email)
	return nil
}
