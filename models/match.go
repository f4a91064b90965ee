package models

import (
	"encoding/json"
	"time"
)

// Match status lifecycle: waiting → active → finished.
// A waiting match can also be cancelled (hard delete) — never reopened.
const (
	MatchStatusWaiting  = "waiting"
	MatchStatusActive   = "active"
	MatchStatusFinished = "finished"
)

const (
	MatchModeNormal = "normal"
	MatchModeBloody = "bloody"
)

const (
	MatchVisibilityPublic  = "public"
	MatchVisibilityPrivate = "private"
)

const (
	CategoryLinux   = "linux"
	CategoryNetwork = "network"
)

// DurationForCount maps a valid question count to the match duration in seconds.
// Returns 0 for counts outside {10, 20, 30}.
func DurationForCount(questionCount int) int {
	switch questionCount {
	case 10:
		return 120
	case 20:
		return 240
	case 30:
		return 360
	default:
		return 0
	}
}

// Match is one 1v1 timed quiz competition, keyed publicly by MatchCode.
type Match struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	MatchCode  string  `gorm:"uniqueIndex;not null;type:varchar(6)" json:"match_code"`
	CreatorID  string  `gorm:"index;not null" json:"creator_id"`
	OpponentID *string `gorm:"index" json:"opponent_id,omitempty"` // nil until joined

	Category      string `json:"category" gorm:"type:varchar(16);not null"`
	QuestionCount int    `json:"question_count" gorm:"not null"`
	Duration      int    `json:"duration" gorm:"not null"` // seconds, fixed function of QuestionCount
	Mode          string `json:"mode" gorm:"type:varchar(16);default:'normal'"`
	Visibility    string `json:"visibility" gorm:"type:varchar(16);default:'public'"`

	Status string `json:"status" gorm:"type:varchar(16);index;default:'waiting'"`

	// Ordered question ids, sampled once at creation, length == QuestionCount.
	QuestionIDsJSON string `json:"-" gorm:"type:text;not null"`

	// Per-side answer maps: question id → selected option indices.
	// Last write wins per question; the two sides never share a column.
	CreatorAnswersJSON  string `json:"-" gorm:"type:text;default:'{}'"`
	OpponentAnswersJSON string `json:"-" gorm:"type:text;default:'{}'"`

	CreatorScore  int     `json:"creator_score" gorm:"default:0"`
	OpponentScore int     `json:"opponent_score" gorm:"default:0"`
	WinnerID      *string `json:"winner_id,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Timestamps
}

// QuestionIDs decodes the ordered question id list.
func (m *Match) QuestionIDs() []string {
	var ids []string
	if m.QuestionIDsJSON != "" {
		_ = json.Unmarshal([]byte(m.QuestionIDsJSON), &ids)
	}
	return ids
}

func (m *Match) SetQuestionIDs(ids []string) {
	b, _ := json.Marshal(ids)
	m.QuestionIDsJSON = string(b)
}

// AnswerMap is one side's recorded answers: question id → selected option indices.
type AnswerMap map[string][]int

func decodeAnswers(raw string) AnswerMap {
	out := AnswerMap{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	return out
}

func (m *Match) CreatorAnswers() AnswerMap  { return decodeAnswers(m.CreatorAnswersJSON) }
func (m *Match) OpponentAnswers() AnswerMap { return decodeAnswers(m.OpponentAnswersJSON) }

func (m *Match) SetCreatorAnswers(a AnswerMap) {
	b, _ := json.Marshal(a)
	m.CreatorAnswersJSON = string(b)
}

func (m *Match) SetOpponentAnswers(a AnswerMap) {
	b, _ := json.Marshal(a)
	m.OpponentAnswersJSON = string(b)
}

// IsParticipant reports whether userID is the creator or the joined opponent.
func (m *Match) IsParticipant(userID string) bool {
	if m.CreatorID == userID {
		return true
	}
	return m.OpponentID != nil && *m.OpponentID == userID
}
