package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/estima/pkg/model"
)

var projects = Source{
	Name:        "Projet",
	Description: "Description",
	Actual:      []string{"Durée réelle (sem)", "⏱️ Durée réelle", "Durée"},
	Fallback:    "ACTU",
}

func rec(id string, props map[string]model.Value) model.Record {
	return model.Record{ID: id, Properties: props}
}

func TestNew_FirstPositiveCandidateWins(t *testing.T) {
	b := New(projects, []model.Record{
		rec("a", map[string]model.Value{
			"Projet":             model.Text(model.KindText, "Alpha"),
			"Durée réelle (sem)": model.Number(model.KindNumber, 0),
			"⏱️ Durée réelle":    model.Number(model.KindFormula, 3),
			"Durée":              model.Number(model.KindNumber, 9),
			"ACTU":               model.Number(model.KindNumber, 12),
		}),
	})

	got := b.For("", nil, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, 3.0, got[0].Duration)
}

func TestNew_FallsBackToCurrentEstimate(t *testing.T) {
	b := New(projects, []model.Record{
		rec("a", map[string]model.Value{
			"Description": model.Text(model.KindText, "desc"),
			"ACTU":        model.Number(model.KindNumber, 4),
		}),
	})

	got := b.For("", nil, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "Sans nom", got[0].Name)
	assert.Equal(t, "desc", got[0].Description)
	assert.Equal(t, 4.0, got[0].Duration)
}

func TestNew_SkipsRecordsWithoutDuration(t *testing.T) {
	b := New(projects, []model.Record{
		rec("none", nil),
		rec("text", map[string]model.Value{"Durée": model.Text(model.KindText, "6 semaines")}),
		rec("negative", map[string]model.Value{"Durée": model.Number(model.KindNumber, -1)}),
		rec("ok", map[string]model.Value{"Durée": model.Number(model.KindNumber, 2)}),
	})

	assert.Equal(t, 1, b.Len())
}

func TestFor_LimitAndSelfExclusion(t *testing.T) {
	var records []model.Record
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, rec(id, map[string]model.Value{"Durée": model.Number(model.KindNumber, 1)}))
	}
	b := New(projects, records)

	got := b.For("b", nil, 5)
	require.Len(t, got, 5)
	ids := make([]string, len(got))
	for i, h := range got {
		ids[i] = h.ID
	}
	assert.Equal(t, []string{"a", "c", "d", "e", "f"}, ids)
}

func TestFor_SameGroupOnly(t *testing.T) {
	tasks := Source{Name: "Nom", Actual: []string{"Temps réel"}, Group: "Projet/Tlt"}
	b := New(tasks, []model.Record{
		rec("t1", map[string]model.Value{
			"Temps réel": model.Number(model.KindNumber, 2),
			"Projet/Tlt": model.List(model.KindRelation, []string{"p2", "p1"}),
		}),
		rec("t2", map[string]model.Value{
			"Temps réel": model.Number(model.KindNumber, 3),
			"Projet/Tlt": model.List(model.KindRelation, []string{"p3"}),
		}),
		rec("t3", map[string]model.Value{
			"Temps réel": model.Number(model.KindNumber, 1),
		}),
	})

	got := b.For("x", []string{"p1", "p2"}, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	got = b.For("x", []string{}, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)

	assert.Len(t, b.For("x", nil, 10), 3)
}
