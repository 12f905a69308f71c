package models_test

import (
	"math"
	"testing"

	"github.com/runesmith/dashboard/internal/models"
)

func TestKnownStatuses_ContainsExpectedValues(t *testing.T) {
	expected := []models.ArtifactStatus{"Scheduled", "Requeued", "Failed", "Enchanting", "Completed"}

	if len(models.KnownStatuses) != len(expected) {
		t.Errorf("KnownStatuses: got %d entries, want %d", len(models.KnownStatuses), len(expected))
	}

	for _, s := range expected {
		if !s.Known() {
			t.Errorf("KnownStatuses: missing expected status %q", s)
		}
	}
}

func TestArtifactStatus_UnknownIsKeptVerbatim(t *testing.T) {
	invalid := []models.ArtifactStatus{"Melting", "", "scheduled", "COMPLETED"}
	for _, s := range invalid {
		if s.Known() {
			t.Errorf("Known(%q): got true, want false", s)
		}
		if string(s) != string(models.ArtifactStatus(string(s))) {
			t.Errorf("status %q was altered", s)
		}
	}
}

func TestEnergyFromNodeName(t *testing.T) {
	tests := []struct {
		name string
		want models.Energy
	}{
		{"worker-fire-1", models.EnergyFire},
		{"Node (Fire)", models.EnergyFire},
		{"FROST-node", models.EnergyFrost},
		{"arcane", models.EnergyArcane},
		{"Worker (Arcane) 2", models.EnergyArcane},
		{"control-plane", models.EnergyUnknown},
		{"", models.EnergyUnknown},
		// fire wins when several keywords are present
		{"fire-and-frost", models.EnergyFire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.EnergyFromNodeName(tt.name); got != tt.want {
				t.Errorf("EnergyFromNodeName(%q): got %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestUsagePercent(t *testing.T) {
	tests := []struct {
		name      string
		allocated int64
		available int64
		want      int
	}{
		{"zero capacity", 0, 0, 0},
		{"idle", 0, 10, 0},
		{"full", 4, 0, 100},
		{"half", 5, 5, 50},
		{"rounds half up", 1, 7, 13},
		{"thirds", 1, 2, 33},
		{"huge capacity", math.MaxInt64, math.MaxInt64, 50},
		{"huge allocation", math.MaxInt64, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := models.NodeStatus{Allocated: tt.allocated, Available: tt.available}
			if got := n.UsagePercent(); got != tt.want {
				t.Errorf("UsagePercent: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRarityOf(t *testing.T) {
	tests := []struct {
		id   int64
		want models.Rarity
	}{
		{0, models.RarityNone},
		{1, models.RarityCommon},
		{10, models.RarityCommon},
		{11, models.RarityRare},
		{20, models.RarityRare},
		{21, models.RarityEpic},
		{30, models.RarityEpic},
		{31, models.RarityLegendary},
		{38, models.RarityLegendary},
	}
	for _, tt := range tests {
		if got := models.RarityOf(tt.id); got != tt.want {
			t.Errorf("RarityOf(%d): got %q, want %q", tt.id, got, tt.want)
		}
	}
}
