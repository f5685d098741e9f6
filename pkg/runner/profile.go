package runner

import "github.com/harrisonrobin/estima/pkg/history"

// Unit is what the provider is asked for.
type Unit int

const (
	// Weeks snaps to util.WeeksScale and is written as is.
	Weeks Unit = iota
	// Minutes is converted to quarter hours before writing.
	Minutes
)

// Profile maps a collection's property names onto the sync pass.
type Profile struct {
	Flow        string
	Title       string
	Description string
	Initial     string
	Current     string
	Fingerprint string

	// Children is a relation to records summarized in the prompt. Each child
	// contributes ChildTitle and ChildEstimate; at most ChildLimit are read.
	Children      string
	ChildTitle    string
	ChildEstimate string
	ChildLimit    int

	// Records whose Lifecycle property contains ExcludedMarker are open-ended.
	Lifecycle      string
	ExcludedMarker string

	// Leaf names a relation that must be empty (no sub-items).
	Leaf string
	// Category must equal, or list, CategoryValue.
	Category      string
	CategoryValue string
	// Group restricts history to records sharing the same relation targets.
	Group string

	Unit         Unit
	History      history.Source
	HistoryLimit int
}

// Projects estimates whole-project durations in weeks.
func Projects() Profile {
	const current = "🤖⏱️A Durée est IA ACTU (sem)"
	return Profile{
		Flow:           "projects",
		Title:          "Projet",
		Description:    "Description",
		Initial:        "🤖⏱️I Durée est IA INIT (sem)",
		Current:        current,
		Fingerprint:    "🤖⏱️Hash Source IA",
		Children:       "Tâches IA",
		ChildTitle:     "Nom",
		ChildEstimate:  "🤖⏱️Temps est IA (h) ENFANT",
		ChildLimit:     10,
		Lifecycle:      "Ordre",
		ExcludedMarker: "Au long court",
		Unit:           Weeks,
		History: history.Source{
			Name:        "Projet",
			Description: "Description",
			Actual:      []string{"Durée réelle (sem)", "⏱️ Durée réelle", "Durée"},
			Fallback:    current,
		},
		HistoryLimit: 5,
	}
}

// Tasks estimates leaf tasks in minutes and writes quarter hours. The
// estimate property serves as both initial and current value.
func Tasks() Profile {
	const estimate = "🤖⏱️Temps est IA (h) ENFANT"
	return Profile{
		Flow:          "tasks",
		Title:         "Nom",
		Description:   "Description",
		Initial:       estimate,
		Current:       estimate,
		Fingerprint:   "🤖⏱️Hash Source IA",
		Leaf:          "Sous-élément",
		Category:      "Type",
		CategoryValue: "Tâche",
		Group:         "Projet/Tlt",
		Unit:          Minutes,
		History: history.Source{
			Name:        "Nom",
			Description: "Description",
			Actual:      []string{"⏱️ Temps réel agrégé (h)", "Temps réel (h)", "Temps réel"},
			Fallback:    estimate,
			Group:       "Projet/Tlt",
		},
		HistoryLimit: 10,
	}
}

// tracked are the properties that never count as extra context.
func (p Profile) tracked() map[string]bool {
	m := make(map[string]bool)
	for _, name := range []string{p.Title, p.Description, p.Initial, p.Current, p.Fingerprint, p.Children} {
		if name != "" {
			m[name] = true
		}
	}
	return m
}
