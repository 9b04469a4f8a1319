// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"time"

	"gorm.io/datatypes"
)

// User represents a user in the system
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// AuthToken represents authentication tokens for users
type AuthToken struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"access_token"`
	RefreshToken string    `gorm:"type:text" json:"refresh_token"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Foreign key relationship
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for AuthToken
func (AuthToken) TableName() string {
	return "auth_tokens"
}

// Section represents a lesion tracking section
type Section struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Foreign key relationship
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Section
func (Section) TableName() string {
	return "sections"
}

// Observation represents one analysed image. SectionID is nil in general mode.
type Observation struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	SectionID   *string        `gorm:"size:36;index" json:"section_id,omitempty"`
	CapturedAt  time.Time      `gorm:"not null;index" json:"captured_at"`
	Dimensions  int            `gorm:"not null" json:"dimensions"`
	Features    []byte         `gorm:"not null" json:"-"` // little-endian float64 blob
	Predictions datatypes.JSON `json:"predictions"`
	IsBaseline  bool           `gorm:"not null;default:false" json:"is_baseline"`
	Annotation  *string        `gorm:"type:text" json:"annotation,omitempty"`
	Narrative   *string        `gorm:"type:text" json:"narrative,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Foreign key relationships
	User    User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Section *Section `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Observation
func (Observation) TableName() string {
	return "observations"
}
