package session

import (
	"slices"

	"github.com/greenscreen-pictures/kiosk/internal/enum"
)

// stepRanks numbers the steps shown on the progress bar. Home and receipt are unranked.
var stepRanks = map[string]int{
	enum.StepDelivery:     1,
	enum.StepBackground:   2,
	enum.StepUserInfo:     3,
	enum.StepConfirmation: 4,
	enum.StepQuickPhoto:   5,
}

// legalTransitions is the complete step graph. Receipt is terminal; the only
// way out is a reset.
var legalTransitions = map[string][]string{
	enum.StepHome:         {enum.StepDelivery},
	enum.StepDelivery:     {enum.StepHome, enum.StepBackground},
	enum.StepBackground:   {enum.StepDelivery, enum.StepUserInfo},
	enum.StepUserInfo:     {enum.StepBackground, enum.StepConfirmation},
	enum.StepConfirmation: {enum.StepUserInfo, enum.StepDelivery, enum.StepBackground, enum.StepQuickPhoto},
	enum.StepQuickPhoto:   {enum.StepConfirmation, enum.StepReceipt},
	enum.StepReceipt:      {},
}

// Rank returns the progress-bar rank of step, or 0 if it has none.
func Rank(step string) int { return stepRanks[step] }

// StepForRank is the inverse of Rank.
func StepForRank(rank int) (string, bool) {
	for step, r := range stepRanks {
		if r == rank {
			return step, true
		}
	}
	return "", false
}

// IsStep reports whether step names a wizard step.
func IsStep(step string) bool {
	_, ok := legalTransitions[step]
	return ok
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to string) bool {
	return slices.Contains(legalTransitions[from], to)
}
