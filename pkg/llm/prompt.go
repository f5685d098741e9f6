package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harrisonrobin/estima/pkg/model"
)

const (
	projectSystem = "Tu es un chef de projet senior, spécialiste de l'estimation de charge globale."
	taskSystem    = "Tu es un assistant de gestion de projet expert en estimation de temps."

	projectHistoryLimit = 5
	taskHistoryLimit    = 10
	projectDescLimit    = 80
	taskDescLimit       = 100
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func historyLines(history []model.HistoricalRecord, limit, descLimit int, unit, empty string) string {
	if len(history) == 0 {
		return empty
	}
	if len(history) > limit {
		history = history[:limit]
	}
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, fmt.Sprintf("- %s: %s%s ('%s')", h.Name, formatNumber(h.Duration), unit, truncate(h.Description, descLimit)))
	}
	return strings.Join(lines, "\n")
}

// ProjectPrompt asks for a whole-project duration picked from scale.
func ProjectPrompt(s Subject, scale []float64) Prompt {
	values := make([]string, len(scale))
	for i, v := range scale {
		values[i] = formatNumber(v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PROJET À ESTIMER:\nNom: %s\nDescription: %s\n\n", s.Name, s.Description)
	fmt.Fprintf(&b, "NOTES DU PROJET:\n%s\n\n", orDefault(s.Content, "Pas de notes de cadrage."))
	fmt.Fprintf(&b, "TÂCHES LIÉES:\n%s\n\n", orDefault(s.Summary, "Aucune tâche listée."))
	fmt.Fprintf(&b, "HISTORIQUE DE PROJETS SIMILAIRES:\n%s\n\n",
		historyLines(s.History, projectHistoryLimit, projectDescLimit, " semaines", "Pas d'historique disponible."))
	fmt.Fprintf(&b, "VALEURS AUTORISÉES (semaines): %s\n\n", strings.Join(values, ", "))
	b.WriteString("CONSIGNES:\n")
	b.WriteString("- Évalue la durée globale du projet, pas la somme de ses tâches.\n")
	b.WriteString("- Compte les validations, le déploiement, les itérations et les imprévus.\n")
	b.WriteString("- Réponds UNIQUEMENT par l'une des valeurs autorisées, sans texte.\n\n")
	b.WriteString("DURÉE ESTIMÉE EN SEMAINES:")

	return Prompt{System: projectSystem, User: b.String(), Temperature: 0.2, MaxTokens: 20}
}

// TaskPrompt asks for a single task's effort in whole minutes.
func TaskPrompt(s Subject) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "CONTEXTE:\n%s\n\n", orDefault(s.Summary, "Aucun contexte."))
	fmt.Fprintf(&b, "HISTORIQUE DES TÂCHES SIMILAIRES:\n%s\n\n",
		historyLines(s.History, taskHistoryLimit, taskDescLimit, "h", "Aucune tâche similaire dans l'historique."))
	fmt.Fprintf(&b, "TÂCHE À ESTIMER:\nNom: %s\nDescription: %s\n\n", s.Name, s.Description)
	fmt.Fprintf(&b, "CONTENU DE LA TÂCHE:\n%s\n\n", orDefault(s.Content, "Aucun contenu détaillé."))
	b.WriteString("CONSIGNES:\n")
	b.WriteString("- L'historique est exprimé en heures (h).\n")
	b.WriteString("- Tiens compte de la description et du contenu; reste réaliste.\n")
	b.WriteString("- Réponds UNIQUEMENT par un nombre entier de minutes (2h s'écrit 120), sans texte.\n\n")
	b.WriteString("ESTIMATION EN MINUTES:")

	return Prompt{System: taskSystem, User: b.String(), Temperature: 0.3, MaxTokens: 50}
}
