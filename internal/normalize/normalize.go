// Package normalize maps loosely shaped backend JSON onto the dashboard's
// entity types.
//
// Every exported function is total: it accepts any decoded JSON value
// (the result of json.Decoder.Decode into an `any`, with or without UseNumber)
// and returns one entity per input element. Elements with missing or
// mistyped fields are mapped with zero values instead of being dropped.
//
// Accepted wire variants per endpoint:
//
//	/status     [..] | {"status": [..]} | {"nodes": [..]}
//	/artifacts  [..] | {"artifacts": [..]}
//	/items      [..] | {"items": [..]} | {"artifacts": [..]}
//
// Wrapper and field names are matched exactly first, then case-insensitively.
package normalize

import (
	"github.com/runesmith/dashboard/internal/models"
)

var (
	nodeWrappers     = []string{"status", "nodes"}
	artifactWrappers = []string{"artifacts"}
	itemWrappers     = []string{"items", "artifacts"}
)

// Nodes normalizes a /status payload.
func Nodes(payload any) []models.NodeStatus {
	elems := unwrap(payload, nodeWrappers...)
	out := make([]models.NodeStatus, 0, len(elems))
	for _, e := range elems {
		out = append(out, node(object(e)))
	}
	return out
}

func node(m map[string]any) models.NodeStatus {
	return models.NodeStatus{
		Name:        toString(field(m, "Name", "NodeName", "node_name")),
		Available:   nonNegative(toInt(field(m, "Available"))),
		Allocated:   nonNegative(toInt(field(m, "Allocated"))),
		Healthy:     toBool(field(m, "Healthy")),
		RunningJobs: nonNegative(toInt(field(m, "RunningJobs", "running_jobs"))),
	}
}

// Artifacts normalizes a /artifacts payload. Ordering is left as received;
// the store applies the sort policy.
func Artifacts(payload any) []models.Artifact {
	elems := unwrap(payload, artifactWrappers...)
	out := make([]models.Artifact, 0, len(elems))
	for _, e := range elems {
		out = append(out, artifact(object(e)))
	}
	return out
}

func artifact(m map[string]any) models.Artifact {
	return models.Artifact{
		ID:        toInt(field(m, "ID", "Id")),
		ItemID:    toInt(field(m, "ItemID", "item_id")),
		ItemName:  toString(field(m, "ItemName", "item_name", "Name")),
		TaskID:    toString(field(m, "TaskID", "task_id")),
		CreatedAt: toTime(field(m, "CreatedAt", "created_at")),
		UpdatedAt: toTime(field(m, "UpdatedAt", "updated_at")),
		Status:    models.ArtifactStatus(toString(field(m, "Status", "phase"))),
	}
}

// Items normalizes an /items payload.
func Items(payload any) []models.Item {
	elems := unwrap(payload, itemWrappers...)
	out := make([]models.Item, 0, len(elems))
	for _, e := range elems {
		out = append(out, item(object(e)))
	}
	return out
}

func item(m map[string]any) models.Item {
	req := object(field(m, "Requirements"))
	it := models.Item{
		ID:   toInt(field(m, "ID", "Id")),
		Name: toString(field(m, "Name")),
		Tier: toString(field(m, "Tier")),
		Requirements: models.Requirements{
			Fire:   nonNegativeFloat(toFloat(field(req, "Fire"))),
			Frost:  nonNegativeFloat(toFloat(field(req, "Frost"))),
			Arcane: nonNegativeFloat(toFloat(field(req, "Arcane"))),
		},
	}
	if p := field(m, "Priority"); p != nil {
		v := toInt(p)
		it.Priority = &v
	}
	return it
}

// unwrap returns the element list of a bare array or of the first wrapper
// key present on an object. Anything else yields an empty list.
func unwrap(payload any, wrappers ...string) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := field(v, wrappers...).([]any); ok {
			return list
		}
	}
	return nil
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func nonNegativeFloat(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
