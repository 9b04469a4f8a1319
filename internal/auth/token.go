// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tejzpr/dermtrack/internal/database"
	"gorm.io/gorm"
)

var (
	// ErrTokenNotFound is returned for unknown or revoked tokens
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned for tokens past their expiry
	ErrTokenExpired = errors.New("token expired")
)

// IssuedToken is a freshly issued token pair. The plaintext values are only
// available here; the database keeps their SHA-256 digests.
type IssuedToken struct {
	UserID       uint      `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenManager handles authentication token operations
type TokenManager struct {
	db       *gorm.DB
	ttlHours int
	now      func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *gorm.DB, ttlHours int) *TokenManager {
	return &TokenManager{
		db:       db,
		ttlHours: ttlHours,
		now:      time.Now,
	}
}

func (tm *TokenManager) ttl() time.Duration {
	return time.Duration(tm.ttlHours) * time.Hour
}

// GenerateToken creates a new access and refresh token for a user
func (tm *TokenManager) GenerateToken(userID uint) (*IssuedToken, error) {
	accessToken, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	row := &database.AuthToken{
		UserID:       userID,
		AccessToken:  hashToken(accessToken),
		RefreshToken: hashToken(refreshToken),
		ExpiresAt:    tm.now().Add(tm.ttl()),
	}

	if err := tm.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return &IssuedToken{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

// ValidateToken checks if a token is valid and not expired
func (tm *TokenManager) ValidateToken(accessToken string) (*database.AuthToken, error) {
	var token database.AuthToken
	err := tm.db.Where("access_token = ?", hashToken(accessToken)).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	if tm.now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

// RefreshToken issues a new access token using a refresh token. Refresh
// tokens live for twice the access token TTL.
func (tm *TokenManager) RefreshToken(refreshToken string) (*IssuedToken, error) {
	var row database.AuthToken
	err := tm.db.Where("refresh_token = ?", hashToken(refreshToken)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}

	if tm.now().After(row.CreatedAt.Add(2 * tm.ttl())) {
		return nil, ErrTokenExpired
	}

	accessToken, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new access token: %w", err)
	}

	row.AccessToken = hashToken(accessToken)
	row.ExpiresAt = tm.now().Add(tm.ttl())
	if err := tm.db.Save(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to update token: %w", err)
	}

	return &IssuedToken{
		UserID:       row.UserID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

// RevokeToken invalidates a token
func (tm *TokenManager) RevokeToken(accessToken string) error {
	result := tm.db.Where("access_token = ?", hashToken(accessToken)).Delete(&database.AuthToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAllUserTokens invalidates all tokens for a user
func (tm *TokenManager) RevokeAllUserTokens(userID uint) error {
	result := tm.db.Where("user_id = ?", userID).Delete(&database.AuthToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", result.Error)
	}
	return nil
}

// CleanExpiredTokens removes expired tokens from the database
func (tm *TokenManager) CleanExpiredTokens() (int64, error) {
	result := tm.db.Where("expires_at < ?", tm.now()).Delete(&database.AuthToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetUserIDFromToken extracts the user ID from a valid token
func (tm *TokenManager) GetUserIDFromToken(accessToken string) (uint, error) {
	token, err := tm.ValidateToken(accessToken)
	if err != nil {
		return 0, err
	}
	return token.UserID, nil
}

// generateRandomToken creates a secure random token
func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
