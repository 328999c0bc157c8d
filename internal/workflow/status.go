package workflow

import "conciera/internal/domain"

// StatusLabel maps a validation code to its display label. Unknown codes
// render like a fresh task.
func StatusLabel(code string) string {
	switch code {
	case domain.StatusAgentVerified:
		return "Vérifié"
	case domain.StatusProblem:
		return "Problème"
	case domain.StatusConciergeValidated:
		return "Validé"
	case domain.StatusConciergeRejected:
		return "Rejeté"
	default:
		return "À faire"
	}
}

// StatusColor is the calendar dot color for a validation code.
func StatusColor(code string) string {
	switch code {
	case domain.StatusAgentVerified:
		return "green"
	case domain.StatusProblem:
		return "red"
	case domain.StatusConciergeValidated:
		return "blue"
	case domain.StatusConciergeRejected:
		return "orange"
	default:
		return "gray"
	}
}

// TypeBadge is the one-letter marker for a task type code.
func TypeBadge(code string) string {
	switch code {
	case "sortie", "depart":
		return "S"
	case "hebdomadaire":
		return "H"
	case "verification", "intermediaire":
		return "V"
	default:
		return "?"
	}
}
