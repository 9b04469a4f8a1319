// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tejzpr/dermtrack/internal/database"
	"gorm.io/gorm"
)

// AccessingUserEnv names the variable read in accessing-user mode
const AccessingUserEnv = "ACCESSING_USER"

// LocalAuthenticator handles local system authentication
type LocalAuthenticator struct {
	tokenManager     *TokenManager
	useAccessingUser bool // If true, use ACCESSING_USER env var instead of whoami
}

// NewLocalAuthenticator creates a new local authenticator
func NewLocalAuthenticator(tm *TokenManager) *LocalAuthenticator {
	return &LocalAuthenticator{
		tokenManager:     tm,
		useAccessingUser: false,
	}
}

// NewLocalAuthenticatorWithAccessingUser creates a local authenticator that uses ACCESSING_USER env var
func NewLocalAuthenticatorWithAccessingUser(tm *TokenManager) *LocalAuthenticator {
	return &LocalAuthenticator{
		tokenManager:     tm,
		useAccessingUser: true,
	}
}

// GetLocalUsername gets the username based on configuration:
// - If useAccessingUser is true: use ACCESSING_USER env var (for servers called by authenticated systems)
// - Otherwise: use whoami (default for standalone usage)
func (l *LocalAuthenticator) GetLocalUsername() (string, error) {
	if l.useAccessingUser {
		username := strings.TrimSpace(os.Getenv(AccessingUserEnv))
		if username == "" {
			return "", fmt.Errorf("%s environment variable is required but not set", AccessingUserEnv)
		}
		return username, nil
	}

	// Default: use system whoami
	cmd := exec.Command("whoami")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get username via whoami: %w", err)
	}

	username := strings.TrimSpace(string(output))
	if username == "" {
		return "", fmt.Errorf("whoami returned empty username")
	}

	return username, nil
}

// ResolveUser finds or creates the local user without issuing a token
func (l *LocalAuthenticator) ResolveUser(db *gorm.DB) (*database.User, error) {
	username, err := l.GetLocalUsername()
	if err != nil {
		return nil, err
	}
	return EnsureUser(db, username)
}

// Authenticate creates or retrieves the local user and issues a token
func (l *LocalAuthenticator) Authenticate(db *gorm.DB) (*database.User, *IssuedToken, error) {
	user, err := l.ResolveUser(db)
	if err != nil {
		return nil, nil, err
	}

	token, err := l.tokenManager.GenerateToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// EnsureUser finds or creates a user by name
func EnsureUser(db *gorm.DB, username string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}

	var user database.User
	result := db.Where("username = ?", username).FirstOrCreate(&user, database.User{
		Username: username,
		Email:    username + "@local",
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create/find user: %w", result.Error)
	}

	return &user, nil
}
