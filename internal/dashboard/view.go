package dashboard

import (
	"github.com/runesmith/dashboard/internal/models"
	"github.com/runesmith/dashboard/internal/poller"
	"github.com/runesmith/dashboard/internal/store"
	"github.com/runesmith/dashboard/internal/toast"
)

// NodeView is a node with its display-derived fields.
type NodeView struct {
	models.NodeStatus
	Energy       models.Energy `json:"energy"`
	UsagePercent int           `json:"usage_percent"`
}

// ArtifactView is an artifact with its display-derived fields.
type ArtifactView struct {
	models.Artifact
	Rarity      models.Rarity `json:"rarity"`
	KnownStatus bool          `json:"known_status"`
}

// ItemView is a catalog item with its rarity band.
type ItemView struct {
	models.Item
	Rarity models.Rarity `json:"rarity"`
}

// ToastView is a toast with its severity.
type ToastView struct {
	toast.Toast
	Error bool `json:"error"`
}

// View is the render-ready projection of the application state.
type View struct {
	Nodes      []NodeView     `json:"nodes"`
	Pending    []ArtifactView `json:"pending"`
	Completed  []ArtifactView `json:"completed"`
	Toasts     []ToastView    `json:"toasts"`
	Polling    bool           `json:"polling"`
	HasRunning bool           `json:"has_running"`
	HasPending bool           `json:"has_pending"`
}

// View builds the current projection. Slices are never nil.
func (a *App) View() View {
	snap := a.store.Snapshot()
	return View{
		Nodes:      nodeViews(snap),
		Pending:    artifactViews(snap.Pending),
		Completed:  artifactViews(snap.Completed),
		Toasts:     ToastViews(a.toasts.List()),
		Polling:    a.poller.State() == poller.Polling,
		HasRunning: snap.HasRunning,
		HasPending: snap.HasPending,
	}
}

// Items returns the catalog as last fetched.
func (a *App) Items() []ItemView {
	items := a.store.Snapshot().Items
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, ItemView{Item: it, Rarity: models.RarityOf(it.ID)})
	}
	return out
}

func nodeViews(snap store.Snapshot) []NodeView {
	out := make([]NodeView, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		out = append(out, NodeView{NodeStatus: n, Energy: n.Energy(), UsagePercent: n.UsagePercent()})
	}
	return out
}

func artifactViews(artifacts []models.Artifact) []ArtifactView {
	out := make([]ArtifactView, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, ArtifactView{Artifact: a, Rarity: models.RarityOf(a.ItemID), KnownStatus: a.Status.Known()})
	}
	return out
}

// ToastViews attaches severity to each toast.
func ToastViews(ts []toast.Toast) []ToastView {
	out := make([]ToastView, 0, len(ts))
	for _, t := range ts {
		out = append(out, ToastView{Toast: t, Error: t.IsError()})
	}
	return out
}
