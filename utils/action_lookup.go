package utils

import (
	"fmt"
	"strings"

	"loan-origination-api/models"
)

// actionSynonyms maps loosely written action names coming from API clients
// to the canonical history action.
var actionSynonyms = map[models.HistoryAction][]string{
	models.HistoryActionSubmitted:  {"submit", "submitted", "submission"},
	models.HistoryActionAssigned:   {"assign", "assigned", "assignment"},
	models.HistoryActionReassigned: {"reassign", "reassigned", "re-assigned"},
	models.HistoryActionApproved:   {"approve", "approved", "approval"},
	models.HistoryActionRejected:   {"reject", "rejected", "declined"},
	models.HistoryActionEscalated:  {"escalate", "escalated"},
	models.HistoryActionReturned:   {"return", "returned", "sent_back", "needs_more_info"},
	models.HistoryActionCommented:  {"comment", "commented", "note"},
	models.HistoryActionDisbursed:  {"disburse", "disbursed"},
}

var actionAliasToCanonical = buildActionAliasMap()

func buildActionAliasMap() map[string]models.HistoryAction {
	aliasMap := make(map[string]models.HistoryAction)
	for canonical, synonyms := range actionSynonyms {
		aliasMap[normalizeActionKey(string(canonical))] = canonical
		for _, alias := range synonyms {
			if key := normalizeActionKey(alias); key != "" {
				aliasMap[key] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeActionKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	return key
}

// ParseHistoryAction resolves raw client input to a history action. Known
// synonyms map to their canonical action; anything else is upper-snake-cased
// and accepted when well formed.
func ParseHistoryAction(raw string) (models.HistoryAction, error) {
	key := normalizeActionKey(raw)
	if key == "" {
		return "", fmt.Errorf("action is required")
	}
	if canonical, ok := actionAliasToCanonical[key]; ok {
		return canonical, nil
	}
	action := models.HistoryAction(strings.ToUpper(key))
	if !action.Valid() {
		return "", fmt.Errorf("action %q is not a valid tag", raw)
	}
	return action, nil
}
