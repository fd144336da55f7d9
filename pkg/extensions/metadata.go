// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import "time"

// Metadata stores arbitrary key-value pairs carried alongside an identity.
//
// Using a defined type rather than map[string]any provides clearer intent
// in signatures and a home for type-safe accessors.
//
// # Common Keys
//
//   - "session_id": identity provider session ID
//   - "request_id": request correlation ID
//   - "mfa_verified": whether MFA was used
//
// # Thread Safety
//
// Metadata is NOT thread-safe. Do not share a single Metadata instance
// across goroutines without external synchronization.
//
// Example:
//
//	meta := extensions.NewMetadata().
//	    Set("session_id", sessionID).
//	    Set("mfa_verified", true)
type Metadata map[string]any

// NewMetadata creates an empty Metadata instance.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set adds or updates a key-value pair and returns the Metadata for chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get retrieves a value by key, with a boolean indicating presence.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// GetString retrieves a string value by key.
// Returns ("", false) if the key is absent or holds a non-string.
func (m Metadata) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt retrieves an int value by key.
// Returns (0, false) if the key is absent or holds a non-int.
func (m Metadata) GetInt(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	i, ok := v.(int)
	return i, ok
}

// GetBool retrieves a bool value by key.
// Returns (false, false) if the key is absent or holds a non-bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetTime retrieves a time.Time value by key.
// Returns (zero, false) if the key is absent or holds a non-time.
func (m Metadata) GetTime(key string) (time.Time, bool) {
	v, ok := m[key]
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Clone returns a shallow copy of the Metadata.
// Values are not deep-copied; mutable values remain shared.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
