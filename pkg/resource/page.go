package resource

import (
	"github.com/nimburion/movieship/pkg/keyset"
	"github.com/nimburion/movieship/pkg/repository/document"
)

// Page is one listing result. Cursor is set only when the page is full.
type Page struct {
	Items  []document.Document `json:"page"`
	Cursor *keyset.Cursor      `json:"cursor"`
}

// HasMore reports whether a further page may exist.
func (p *Page) HasMore() bool {
	return p.Cursor != nil
}
