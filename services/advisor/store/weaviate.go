// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
)

// Weaviate class names for the advisor's stored objects.
const (
	ClassEvidence = "Evidence"
	ClassProject  = "Project"
	ClassInsight  = "Insight"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. It encapsulates the marshal/unmarshal pattern needed to convert the
// dynamic response payload into a strongly-typed struct; T's json tags must
// match the response shape.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// evidenceQueryResponse is the shape of a Get query on the Evidence class.
type evidenceQueryResponse struct {
	Get struct {
		Evidence []struct {
			Type         string  `json:"type"`
			Strength     string  `json:"strength"`
			QualityScore float64 `json:"quality_score"`
		} `json:"Evidence"`
	} `json:"Get"`
}

// projectQueryResponse resolves a project's Weaviate UUID by its project_id.
type projectQueryResponse struct {
	Get struct {
		Project []struct {
			Additional struct {
				ID string `json:"id"`
			} `json:"_additional"`
		} `json:"Project"`
	} `json:"Get"`
}

// insightQueryResponse is the shape of a nearText query on the Insight class.
type insightQueryResponse struct {
	Get struct {
		Insight []struct {
			Content    string `json:"content"`
			Source     string `json:"source"`
			Additional struct {
				Certainty *float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"Insight"`
	} `json:"Get"`
}

// =============================================================================
// Evidence repository
// =============================================================================

// WeaviateEvidence implements capability.EvidenceRepository against a
// Weaviate instance holding Evidence and Project classes.
type WeaviateEvidence struct {
	client *weaviate.Client
}

// NewWeaviateEvidence wraps an existing Weaviate client.
func NewWeaviateEvidence(client *weaviate.Client) *WeaviateEvidence {
	return &WeaviateEvidence{client: client}
}

// ListByProject returns all evidence rows attached to the project. Rows come
// back as stored; strength validation is the caller's concern.
func (w *WeaviateEvidence) ListByProject(ctx context.Context, projectID string) ([]capability.EvidenceRecord, error) {
	where := filters.Where().
		WithPath([]string{"project_id"}).
		WithOperator(filters.Equal).
		WithValueString(projectID)

	fields := []graphql.Field{
		{Name: "type"},
		{Name: "strength"},
		{Name: "quality_score"},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(ClassEvidence).
		WithWhere(where).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error querying evidence for project %s: %w", projectID, err)
	}

	parsed, err := ParseGraphQLResponse[evidenceQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("error parsing evidence query response: %w", err)
	}

	records := make([]capability.EvidenceRecord, 0, len(parsed.Get.Evidence))
	for _, row := range parsed.Get.Evidence {
		records = append(records, capability.EvidenceRecord{
			Type:         row.Type,
			Strength:     row.Strength,
			QualityScore: row.QualityScore,
		})
	}
	return records, nil
}

// UpdateProjectGate merges the gate summary fields into the project object.
// The project is located by its project_id property first, then patched by
// Weaviate UUID.
func (w *WeaviateEvidence) UpdateProjectGate(ctx context.Context, projectID string, update capability.ProjectGateUpdate) error {
	uuid, err := w.findProjectUUID(ctx, projectID)
	if err != nil {
		return err
	}

	err = w.client.Data().Updater().
		WithMerge().
		WithClassName(ClassProject).
		WithID(uuid).
		WithProperties(map[string]interface{}{
			"gate_status":       update.GateStatus,
			"evidence_quality":  update.EvidenceQuality,
			"evidence_count":    update.EvidenceCount,
			"experiments_count": update.ExperimentsCount,
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("error updating project %s gate fields: %w", projectID, err)
	}

	slog.Debug("Updated project gate fields", "project_id", projectID, "gate_status", update.GateStatus)
	return nil
}

func (w *WeaviateEvidence) findProjectUUID(ctx context.Context, projectID string) (string, error) {
	where := filters.Where().
		WithPath([]string{"project_id"}).
		WithOperator(filters.Equal).
		WithValueString(projectID)

	fields := []graphql.Field{
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(ClassProject).
		WithWhere(where).
		WithFields(fields...).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("error querying for project %s: %w", projectID, err)
	}

	parsed, err := ParseGraphQLResponse[projectQueryResponse](resp)
	if err != nil {
		return "", fmt.Errorf("error parsing project query response: %w", err)
	}

	if len(parsed.Get.Project) == 0 {
		return "", fmt.Errorf("project %s: %w", projectID, capability.ErrNotFound)
	}
	return parsed.Get.Project[0].Additional.ID, nil
}

var _ capability.EvidenceRepository = (*WeaviateEvidence)(nil)

// =============================================================================
// Semantic search
// =============================================================================

// WeaviateSearch implements capability.SemanticSearch with a nearText query
// over the Insight class.
type WeaviateSearch struct {
	client *weaviate.Client
}

// NewWeaviateSearch wraps an existing Weaviate client.
func NewWeaviateSearch(client *weaviate.Client) *WeaviateSearch {
	return &WeaviateSearch{client: client}
}

// Search returns up to limit insights nearest to the query text.
func (w *WeaviateSearch) Search(ctx context.Context, query string, limit int) ([]capability.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	resp, err := w.client.GraphQL().Get().
		WithClassName(ClassInsight).
		WithNearText(nearText).
		WithFields(fields...).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("error running semantic search: %w", err)
	}

	parsed, err := ParseGraphQLResponse[insightQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("error parsing semantic search response: %w", err)
	}

	hits := make([]capability.SearchHit, 0, len(parsed.Get.Insight))
	for _, row := range parsed.Get.Insight {
		hit := capability.SearchHit{Content: row.Content, Source: row.Source}
		if row.Additional.Certainty != nil {
			hit.Certainty = *row.Additional.Certainty
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

var _ capability.SemanticSearch = (*WeaviateSearch)(nil)
