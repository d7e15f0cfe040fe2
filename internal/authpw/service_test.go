package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"copydesk/api/internal/store"
)

type mockUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string
	verifications map[string]store.User
	resets        map[string]struct {
		userID    string
		expiresAt time.Time
		used      bool
	}
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.User),
		resets: make(map[string]struct {
			userID    string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if user, ok := m.users[userID]; ok {
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		m.users[userID] = user
		m.verifications[token] = user
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if user, ok := m.verifications[token]; ok {
		user.IsEmailVerified = true
		m.users[user.ID] = user
		m.emailIndex[user.Email] = user.ID
		return nil
	}
	return errors.New("invalid token")
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func (m *mockUserStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = struct {
		userID    string
		expiresAt time.Time
		used      bool
	}{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *mockUserStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if reset, ok := m.resets[token]; ok && !reset.used && time.Now().Before(reset.expiresAt) {
		return reset.userID, nil
	}
	return "", errors.New("invalid or expired token")
}

func (m *mockUserStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if reset, ok := m.resets[token]; ok {
		reset.used = true
		m.resets[token] = reset
	}
	return nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		resp, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "jane@copydesk.test",
			Password:    "password123",
			DisplayName: "Jane Doe",
		})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if resp.UserID == "" || resp.VerificationToken == "" {
			t.Errorf("incomplete response: %+v", resp)
		}
		if !resp.RequiresEmailVerify {
			t.Error("new accounts should require verification")
		}
		user := mockStore.users[resp.UserID]
		if user.Role != "producer" {
			t.Errorf("new accounts default to producer, got %s", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password stored in plain text")
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "jane@copydesk.test",
			Password:    "password456",
			DisplayName: "Other Jane",
		})
		if err == nil {
			t.Fatal("expected duplicate email error")
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "short@copydesk.test",
			Password:    "short",
			DisplayName: "Shorty",
		})
		if err == nil {
			t.Fatal("expected password length error")
		}
	})
}

func TestSignInFlow(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "marcus@copydesk.test",
		Password:    "password123",
		DisplayName: "Marcus K",
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("unverified account flagged", func(t *testing.T) {
		signIn, err := svc.SignIn(ctx, SignInRequest{Email: "marcus@copydesk.test", Password: "password123"})
		if err != nil {
			t.Fatal(err)
		}
		if !signIn.RequiresVerify {
			t.Error("expected RequiresVerify before email verification")
		}
	})

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	t.Run("verified sign in", func(t *testing.T) {
		signIn, err := svc.SignIn(ctx, SignInRequest{Email: "marcus@copydesk.test", Password: "password123"})
		if err != nil {
			t.Fatal(err)
		}
		if signIn.RequiresVerify {
			t.Error("verified account should sign in")
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "marcus@copydesk.test", Password: "wrong-pass"}); err == nil {
			t.Fatal("expected invalid credentials")
		}
	})

	t.Run("bad verify token rejected", func(t *testing.T) {
		if err := svc.VerifyEmail(ctx, "nope"); err == nil {
			t.Fatal("expected invalid token error")
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "sarah@copydesk.test",
		Password:    "password123",
		DisplayName: "Sarah R",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatal(err)
	}

	token, err := svc.RequestPasswordReset(ctx, "sarah@copydesk.test")
	if err != nil || token == "" {
		t.Fatalf("expected reset token, got %q, %v", token, err)
	}

	// Unknown emails produce no token and no error.
	unknown, err := svc.RequestPasswordReset(ctx, "ghost@copydesk.test")
	if err != nil || unknown != "" {
		t.Errorf("unknown email should be silent: %q, %v", unknown, err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newpassword1"}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	signIn, err := svc.SignIn(ctx, SignInRequest{Email: "sarah@copydesk.test", Password: "newpassword1"})
	if err != nil || signIn.RequiresVerify {
		t.Fatalf("sign in with new password failed: %v", err)
	}

	// Token is single use.
	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "anotherpass1"}); err == nil {
		t.Error("expected used token to be rejected")
	}
}
