package service

import (
	"errors"
	"testing"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/coordinator/storage"
)

// mockLogger is a no-op logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Fatal(msg string, args ...any) {}

func newAuth() *AuthService {
	return NewAuthService(storage.NewInMemoryUserStore(), &mockLogger{})
}

func TestRegister(t *testing.T) {
	t.Run("valid email returns a generated password", func(t *testing.T) {
		auth := newAuth()
		password, err := auth.Register("alice@example.com")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if len(password) != 8 {
			t.Errorf("password length = %d, want 8", len(password))
		}
	})

	t.Run("invalid emails are rejected", func(t *testing.T) {
		auth := newAuth()
		for _, email := range []string{"", "no-at-sign", "trailing@"} {
			if _, err := auth.Register(email); !errors.Is(err, core.ErrInvalidEmail) {
				t.Errorf("Register(%q) error = %v, want ErrInvalidEmail", email, err)
			}
		}
	})

	t.Run("re-registering rotates the password", func(t *testing.T) {
		auth := newAuth()
		first, _ := auth.Register("alice@example.com")
		second, err := auth.Register("alice@example.com")
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if first == second {
			t.Error("re-registration kept the old password")
		}
		if err := auth.Login("alice@example.com", first); err == nil {
			t.Error("old password still accepted after rotation")
		}
		if err := auth.Login("alice@example.com", second); err != nil {
			t.Errorf("Login() with rotated password error = %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	auth := newAuth()
	password, err := auth.Register("alice@example.com")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("correct credentials", func(t *testing.T) {
		if err := auth.Login("alice@example.com", password); err != nil {
			t.Errorf("Login() error = %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if err := auth.Login("alice@example.com", "wrong"); !errors.Is(err, core.ErrLoginFailed) {
			t.Errorf("Login() error = %v, want ErrLoginFailed", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		if err := auth.Login("bob@example.com", password); !errors.Is(err, core.ErrEmailNotFound) {
			t.Errorf("Login() error = %v, want ErrEmailNotFound", err)
		}
	})
}

func TestUserExists(t *testing.T) {
	auth := newAuth()
	auth.Register("alice@example.com")

	if ok, err := auth.UserExists("alice@example.com"); err != nil || !ok {
		t.Errorf("UserExists() = %v, %v; want true", ok, err)
	}
	if _, err := auth.UserExists("bob@example.com"); err == nil {
		t.Error("UserExists() for unknown email returned no error")
	}
}
