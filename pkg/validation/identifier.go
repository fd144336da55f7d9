// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that end up
// in database queries or storage keys. Using these validators prevents
// injection attacks (GraphQL filter injection, key traversal).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern matches valid project and record identifiers.
// Allows: letters, digits, underscores, hyphens. Must start alphanumeric.
// Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]{0,63}$`)

// ValidateProjectID validates a project identifier before it is used in a
// Weaviate GraphQL where-filter or a storage key.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters, digits, underscores, hyphens
//   - First character alphanumeric
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateProjectID(projectID); err != nil {
//	    return nil, fmt.Errorf("invalid project_id: %w", err)
//	}
//	// Safe to interpolate into a GraphQL filter
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project id cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid project id format: %q (must be 1-64 alphanumeric chars, underscores, or hyphens)", id)
	}

	return nil
}

// ValidateProjectIDs validates multiple project identifiers.
// Returns an error listing all invalid identifiers if any fail.
func ValidateProjectIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateProjectID(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid project ids: %v", invalid)
	}
	return nil
}

// SanitizeProjectID normalizes and validates a project identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
func SanitizeProjectID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateProjectID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
