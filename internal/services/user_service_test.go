package services

import (
	"context"
	"testing"

	"examprep/internal/config"
	contextutils "examprep/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserFixture(t *testing.T, password string) *UserService {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			Users: []config.UserCredential{
				{Username: "alice", PasswordHash: hash},
			},
		},
	}
	return NewUserService(cfg, testLogger())
}

func TestAuthenticate_Success(t *testing.T) {
	users := newUserFixture(t, "correct horse battery staple")

	username, err := users.Authenticate(context.Background(), "alice", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestAuthenticate_CaseInsensitiveUsername(t *testing.T) {
	users := newUserFixture(t, "pw")

	username, err := users.Authenticate(context.Background(), "  ALICE ", "pw")
	require.NoError(t, err)
	// Canonical username comes back regardless of input casing
	assert.Equal(t, "alice", username)
}

func TestAuthenticate_Failures(t *testing.T) {
	users := newUserFixture(t, "pw")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "mallory", "pw"},
		{"wrong password", "alice", "wrong"},
		{"empty password", "alice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Authenticate(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, contextutils.ErrInvalidCredentials)
		})
	}
}

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("other")))
}

func TestUsernames(t *testing.T) {
	users := newUserFixture(t, "pw")
	assert.Equal(t, []string{"alice"}, users.Usernames())
}
