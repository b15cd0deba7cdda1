// Package docs stores per-user JSON documents: the cooking profile, the
// ingredient pantry, and the meal history. Documents are schemaless on the
// server; clients own the shape, the store owns last-write-wins persistence.
package docs

import (
	"encoding/json"
	"time"
)

// DocType names one document slot per user.
type DocType string

const (
	DocProfile     DocType = "profile"
	DocIngredients DocType = "ingredients"
	DocHistory     DocType = "history"
)

// Valid reports whether the type is one of the known slots.
func (d DocType) Valid() bool {
	switch d {
	case DocProfile, DocIngredients, DocHistory:
		return true
	}
	return false
}

// Document is one stored JSON document.
type Document struct {
	UserID    string          `json:"-"`
	Type      DocType         `json:"type"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
