package llm

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/harrisonrobin/estima/pkg/model"
	"github.com/harrisonrobin/estima/pkg/util"
)

func TestProjectPrompt_Golden(t *testing.T) {
	p := ProjectPrompt(Subject{
		Name:        "Refonte site",
		Description: "Migration du site vitrine\n\nCONTEXTE: Statut: En cours",
		Content:     "# Cadrage\n- Maquettes validées",
		Summary:     "- Intégration: ~4h estimé\n- Recette: non estimé",
		History: []model.HistoricalRecord{
			{Name: "Portail RH", Description: "Portail interne", Duration: 6},
			{Name: "Blog", Duration: 1.5},
		},
	}, util.WeeksScale)

	g := goldie.New(t)
	g.Assert(t, "project_prompt", []byte(p.User))
	assert.Equal(t, projectSystem, p.System)
	assert.Equal(t, 0.2, p.Temperature)
	assert.Equal(t, 20, p.MaxTokens)
}

func TestTaskPrompt_Golden(t *testing.T) {
	p := TaskPrompt(Subject{
		Name:    "Rédiger la recette",
		Summary: "Projet: Refonte site",
		History: []model.HistoricalRecord{
			{Name: "Recette V1", Description: "Cahier de recette", Duration: 2.5},
		},
	})

	g := goldie.New(t)
	g.Assert(t, "task_prompt", []byte(p.User))
	assert.Equal(t, 0.3, p.Temperature)
	assert.Equal(t, 50, p.MaxTokens)
}

func TestProjectPrompt_BoundsHistory(t *testing.T) {
	var history []model.HistoricalRecord
	for i := 0; i < 8; i++ {
		history = append(history, model.HistoricalRecord{Name: "p", Description: strings.Repeat("é", 200), Duration: 2})
	}
	p := ProjectPrompt(Subject{Name: "x", History: history}, util.WeeksScale)

	assert.Equal(t, projectHistoryLimit, strings.Count(p.User, "- p: 2 semaines"))
	assert.Contains(t, p.User, "('"+strings.Repeat("é", projectDescLimit)+"')")
	assert.Contains(t, p.User, "Pas de notes de cadrage.")
	assert.Contains(t, p.User, "Aucune tâche listée.")
}

func TestTaskPrompt_EmptyHistory(t *testing.T) {
	p := TaskPrompt(Subject{Name: "x"})
	assert.Contains(t, p.User, "Aucune tâche similaire dans l'historique.")
	assert.Contains(t, p.User, "Aucun contexte.")
}
