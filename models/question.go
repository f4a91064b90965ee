package models

import "encoding/json"

// Question is one multiple-choice question in the arena bank.
// Options and correct option indices are stored as JSON text columns;
// single-answer questions carry a one-element correct set.
type Question struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Category string `gorm:"index;not null;type:varchar(16)" json:"category"` // linux / network
	Text     string `gorm:"type:text;not null" json:"text"`

	OptionsJSON        string `json:"-" gorm:"type:text;not null"`
	CorrectAnswersJSON string `json:"-" gorm:"type:text;not null"`

	Points int `json:"points" gorm:"default:1"`

	// Import batch this question arrived with (empty for hand-created ones).
	PackSlug string `gorm:"index" json:"pack_slug,omitempty"`

	Timestamps
}

func (q *Question) Options() []string {
	var opts []string
	if q.OptionsJSON != "" {
		_ = json.Unmarshal([]byte(q.OptionsJSON), &opts)
	}
	return opts
}

func (q *Question) SetOptions(opts []string) {
	b, _ := json.Marshal(opts)
	q.OptionsJSON = string(b)
}

// CorrectAnswers returns the indices of the correct options.
func (q *Question) CorrectAnswers() []int {
	var idx []int
	if q.CorrectAnswersJSON != "" {
		_ = json.Unmarshal([]byte(q.CorrectAnswersJSON), &idx)
	}
	return idx
}

func (q *Question) SetCorrectAnswers(idx []int) {
	b, _ := json.Marshal(idx)
	q.CorrectAnswersJSON = string(b)
}
