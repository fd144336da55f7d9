// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Providers should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// The struct is extensible via the Metadata field, so a hosted deployment
// can carry additional claims without changing the core type.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: User's email address
//   - PlanType: Subscription tier ("trial", "sprint", "founder", "enterprise")
//   - Roles: List of roles/groups the user belongs to
//   - Metadata: Arbitrary key-value pairs for provider extensions
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// PlanType is the user's subscription tier. It selects the advisor
	// persona for conversation sessions. Empty means "trial".
	PlanType string

	// Roles contains the user's role memberships for authorization decisions.
	Roles []string

	// Metadata holds additional claims from the identity provider.
	//
	// Common metadata keys:
	//   - "session_id": identity provider session ID
	//   - "mfa_verified": whether MFA was used
	Metadata Metadata
}

// HasRole checks if the user has a specific role.
//
// This is a convenience method for authorization checks:
//
//	if !authInfo.HasRole("admin") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// The default NopAuthProvider always returns a valid "local-user", which
// lets the advisor run locally without any authentication infrastructure.
// Hosted deployments implement this interface against their identity
// provider, or use StaticTokenProvider for a single shared token.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	//
	// Returns:
	//   - *AuthInfo: User identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check request as a
// (subject, action, resource) triple.
//
// Example:
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "read",
//	    ResourceType: "analysis",
//	    ResourceID:   "analysis-456",
//	}
//	err := authzProvider.Authorize(ctx, req)
type AuthzRequest struct {
	// User is the authenticated user making the request.
	// This comes from AuthProvider.Validate().
	User *AuthInfo

	// Action is the operation being attempted.
	// Common actions: "create", "read", "update", "delete", "execute"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "session", "analysis", "gate", "project"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// If empty, the check is for the resource type in general.
	ResourceID string
}

// AuthzProvider checks if a user is authorized to perform an action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The default NopAuthzProvider always allows all actions, which is
// appropriate for single-user local deployments.
type AuthzProvider interface {
	// Authorize checks if the user is permitted to perform the action.
	//
	// Returns:
	//   - nil: Action is authorized
	//   - error: ErrUnauthorized (or wrapped) if denied
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default authentication provider.
//
// It always returns a valid local user with admin privileges, enabling
// the advisor to function without any authentication infrastructure.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
//
// The token parameter is ignored - any value (including empty string)
// results in successful authentication. This is intentional for local
// single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID:   "local-user",
		PlanType: "trial",
		Roles:    []string{"admin"},
	}, nil
}

// StaticTokenProvider authenticates against a single pre-shared token.
//
// It is the simplest non-trivial provider: useful for small hosted
// deployments fronted by a gateway that issues one API token.
//
// Thread-safe: This implementation has no mutable state.
type StaticTokenProvider struct {
	// Token is the expected bearer token. Must be non-empty.
	Token string

	// UserID is reported for successful validations.
	// Empty defaults to "api-user".
	UserID string

	// PlanType is reported for successful validations.
	// Empty defaults to "founder".
	PlanType string
}

// Validate compares the presented token against the configured one in
// constant time and returns the configured identity on match.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if p.Token == "" {
		return nil, errors.New("static token provider has no token configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		return nil, ErrUnauthorized
	}

	userID := p.UserID
	if userID == "" {
		userID = "api-user"
	}
	planType := p.PlanType
	if planType == "" {
		planType = "founder"
	}
	return &AuthInfo{UserID: userID, PlanType: planType}, nil
}

// NopAuthzProvider is the default authorization provider.
//
// It always allows all actions, enabling the advisor to function without
// any access control infrastructure.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthProvider  = (*StaticTokenProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
