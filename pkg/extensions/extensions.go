// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines injection points for deployment-specific
// functionality.
//
// Northstar is designed to run as a fully functional local advisor with
// no authentication infrastructure. Hosted deployments provide concrete
// implementations of these interfaces and inject them via ServiceOptions;
// the defaults are no-ops.
//
// # Extension Categories
//
//   - auth.go: Authentication and authorization (AuthProvider, AuthzProvider)
//
// # Usage (local)
//
//	opts := extensions.DefaultOptions()
//	svc, err := advisor.New(cfg, opts)
//
// # Usage (hosted)
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(&extensions.StaticTokenProvider{Token: apiToken})
//	svc, err := advisor.New(cfg, opts)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors. All fields are optional; nil values
// are replaced with no-op defaults when DefaultOptions() is called or when
// services check for nil.
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns valid local user)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization permissions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used for local single-user deployments:
// all operations are allowed.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}
