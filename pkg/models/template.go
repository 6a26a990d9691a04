package models

import "time"

// PromptTemplate is a reusable prompt. Content normally contains the
// {{text}} placeholder; a template without it renders unchanged.
type PromptTemplate struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
