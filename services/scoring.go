package services

import "net2077-arena-system/models"

// answerCorrect applies all-or-nothing grading: the selected option indices
// must equal the correct set exactly — same size, same members, no duplicates.
func answerCorrect(selected, correct []int) bool {
	if len(selected) != len(correct) {
		return false
	}
	selSet := make(map[int]struct{}, len(selected))
	for _, i := range selected {
		selSet[i] = struct{}{}
	}
	// duplicates in `selected` shrink the set and fail the size check
	if len(selSet) != len(correct) {
		return false
	}
	for _, i := range correct {
		if _, ok := selSet[i]; !ok {
			return false
		}
	}
	return true
}

// scoreSide sums the points of every question the side answered correctly.
// Unanswered questions contribute zero.
func scoreSide(answers models.AnswerMap, questions []models.Question) int {
	score := 0
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok {
			continue
		}
		if answerCorrect(selected, q.CorrectAnswers()) {
			pts := q.Points
			if pts == 0 {
				pts = 1
			}
			score += pts
		}
	}
	return score
}

// distributeXP applies the mode-dependent reward split at finish time:
//   - normal: each side keeps its own score as XP
//   - bloody: the strictly higher side takes the sum of both, the loser nothing
//   - bloody draw: falls back to normal
func distributeXP(mode string, creatorScore, opponentScore int) (creatorXP, opponentXP int64) {
	if mode == models.MatchModeBloody && creatorScore != opponentScore {
		pot := int64(creatorScore + opponentScore)
		if creatorScore > opponentScore {
			return pot, 0
		}
		return 0, pot
	}
	return int64(creatorScore), int64(opponentScore)
}

// matchWinner returns the winner's id, or nil on a tie.
func matchWinner(m *models.Match, creatorScore, opponentScore int) *string {
	if creatorScore > opponentScore {
		id := m.CreatorID
		return &id
	}
	if opponentScore > creatorScore && m.OpponentID != nil {
		id := *m.OpponentID
		return &id
	}
	return nil
}
