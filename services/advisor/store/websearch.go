// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
)

const webSearchUserAgent = "northstar-advisor/1.0 (+https://candorlabs.io)"

// DuckDuckGoSearch implements capability.WebSearch over the DuckDuckGo HTML
// endpoint. No API key is required.
type DuckDuckGoSearch struct {
	tool *duckduckgo.Tool
}

// NewDuckDuckGoSearch builds a searcher returning up to maxResults results
// per query.
func NewDuckDuckGoSearch(maxResults int) (*DuckDuckGoSearch, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	tool, err := duckduckgo.New(maxResults, webSearchUserAgent)
	if err != nil {
		return nil, fmt.Errorf("create web search tool: %w", err)
	}
	return &DuckDuckGoSearch{tool: tool}, nil
}

// Search runs the query and returns a text digest of the results.
func (d *DuckDuckGoSearch) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty search query")
	}

	result, err := d.tool.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}
	return result, nil
}

var _ capability.WebSearch = (*DuckDuckGoSearch)(nil)
