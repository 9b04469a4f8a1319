// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// BaselineIndexName is the unique partial index that allows at most one
// baseline observation per section
const BaselineIndexName = "idx_observations_section_baseline"

// AllModels returns all database models for migration
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&AuthToken{},
		&Section{},
		&Observation{},
	}
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DropAllTables drops all tables (use with caution!)
func DropAllTables(db *gorm.DB) error {
	// Drop in reverse order to avoid foreign key constraints
	models := []interface{}{
		&Observation{},
		&Section{},
		&AuthToken{},
		&User{},
	}

	for _, model := range models {
		if err := db.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	return nil
}

// CreateIndexes creates additional indexes for better query performance and
// the baseline guard
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		columns []string
		name    string
		unique  bool
		where   string
	}{
		{
			table:   "sections",
			columns: []string{"user_id", "created_at"},
			name:    "idx_sections_user_created",
		},
		{
			table:   "observations",
			columns: []string{"section_id", "captured_at"},
			name:    "idx_observations_section_captured",
		},
		{
			table:   "observations",
			columns: []string{"user_id", "captured_at"},
			name:    "idx_observations_user_captured",
		},
		{
			table:   "auth_tokens",
			columns: []string{"user_id", "expires_at"},
			name:    "idx_tokens_user_expires",
		},
		{
			table:   "observations",
			columns: []string{"section_id"},
			name:    BaselineIndexName,
			unique:  true,
			where:   "is_baseline",
		},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			continue
		}

		kind := "INDEX"
		if idx.unique {
			kind = "UNIQUE INDEX"
		}
		sql := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
			kind, idx.name, idx.table, strings.Join(idx.columns, ", "))
		if idx.where != "" {
			sql += " WHERE " + idx.where
		}

		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
