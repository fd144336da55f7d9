// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command northstar is the CLI for the Northstar startup advisory
// backend. It starts the advisor HTTP service and provides offline
// tooling such as gate evaluation against a local evidence file.
//
// # Usage
//
//	# Start the advisor service (configured via environment variables)
//	northstar serve
//
//	# Evaluate a gate offline from an evidence JSON file
//	northstar gate evaluate --stage DESIRABILITY evidence.json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
