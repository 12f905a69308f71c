package models

import (
	"math"
	"strings"
	"time"
)

// ArtifactStatus is the backend-assigned lifecycle phase of an artifact.
// Values outside the known set are kept verbatim so they still render.
type ArtifactStatus string

const (
	StatusScheduled  ArtifactStatus = "Scheduled"
	StatusRequeued   ArtifactStatus = "Requeued"
	StatusFailed     ArtifactStatus = "Failed"
	StatusEnchanting ArtifactStatus = "Enchanting"
	StatusCompleted  ArtifactStatus = "Completed"
)

// KnownStatuses is the set of status values the backend is known to emit.
var KnownStatuses = map[ArtifactStatus]bool{
	StatusScheduled:  true,
	StatusRequeued:   true,
	StatusFailed:     true,
	StatusEnchanting: true,
	StatusCompleted:  true,
}

// Known reports whether s is one of the known backend phases.
func (s ArtifactStatus) Known() bool {
	return KnownStatuses[s]
}

// Artifact is a requested unit of work as reported by GET /artifacts.
type Artifact struct {
	ID        int64          `json:"id"`
	ItemID    int64          `json:"item_id"`
	ItemName  string         `json:"item_name"`
	TaskID    string         `json:"task_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Status    ArtifactStatus `json:"status"`
}

// Energy is the categorical resource kind inferred from a node name.
type Energy string

const (
	EnergyFire    Energy = "fire"
	EnergyFrost   Energy = "frost"
	EnergyArcane  Energy = "arcane"
	EnergyUnknown Energy = "unknown"
)

// EnergyFromNodeName classifies a node by the first energy keyword found in
// its lowercased name. Names without a keyword map to EnergyUnknown.
func EnergyFromNodeName(name string) Energy {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "fire"):
		return EnergyFire
	case strings.Contains(n, "frost"):
		return EnergyFrost
	case strings.Contains(n, "arcane"):
		return EnergyArcane
	}
	return EnergyUnknown
}

// NodeStatus is the live state of a compute node.
type NodeStatus struct {
	Name        string `json:"name"`
	Available   int64  `json:"available"`
	Allocated   int64  `json:"allocated"`
	Healthy     bool   `json:"healthy"`
	RunningJobs int64  `json:"running_jobs"`
}

// Energy returns the energy tag encoded in the node name.
func (n NodeStatus) Energy() Energy {
	return EnergyFromNodeName(n.Name)
}

// UsagePercent returns allocated/(allocated+available) as a rounded
// percentage. A node with no capacity reports 0.
func (n NodeStatus) UsagePercent() int {
	allocated := float64(n.Allocated)
	total := allocated + float64(n.Available)
	if total <= 0 {
		return 0
	}
	return int(math.Round(allocated / total * 100))
}

// Requirements is the per-energy cost of forging an item.
type Requirements struct {
	Fire   float64 `json:"fire"`
	Frost  float64 `json:"frost"`
	Arcane float64 `json:"arcane"`
}

// Item is a catalog entry describing a forgeable artifact template.
type Item struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Tier         string       `json:"tier,omitempty"`
	Requirements Requirements `json:"requirements"`
	Priority     *int64       `json:"priority,omitempty"`
}

// Rarity is the display class derived from an item identifier.
type Rarity string

const (
	RarityNone      Rarity = ""
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RarityOf maps an item ID onto its rarity band. ID 0 means "no item" and
// yields RarityNone.
func RarityOf(itemID int64) Rarity {
	switch {
	case itemID == 0:
		return RarityNone
	case itemID >= 31:
		return RarityLegendary
	case itemID >= 21:
		return RarityEpic
	case itemID >= 11:
		return RarityRare
	}
	return RarityCommon
}
