package model

import "time"

// Proficiency levels a question can target
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// ValidLevel reports whether level is one of Levels
func ValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Question is a multiple choice item of the question bank
type Question struct {
	ID            string     `json:"_id,omitempty"`
	Competency    string     `json:"competency"`
	Level         string     `json:"level"`
	QuestionText  string     `json:"questionText"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// QuestionInput is the body for create and update. Nil fields are left
// untouched on update.
type QuestionInput struct {
	Competency    *string  `json:"competency,omitempty"`
	Level         *string  `json:"level,omitempty"`
	QuestionText  *string  `json:"questionText,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
}

// QuestionFilter narrows a question listing
type QuestionFilter struct {
	Page       int
	Limit      int
	Search     string
	Level      string
	Competency string
	SortBy     string // createdAt, level or competency
}

// Pagination describes a page of a listing
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// QuestionPage is one page of questions
type QuestionPage struct {
	Questions  []Question `json:"data"`
	Pagination Pagination `json:"pagination"`
}
