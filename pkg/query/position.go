package query

import (
	"encoding/base64"
	"net/url"
)

// Cursor token keys.
const (
	positionPrimary        = "p"
	positionPrimaryField   = "pf"
	positionSecondary      = "s"
	positionSecondaryField = "sf"
)

// Position is the decoded resume point of a listing: the sort-key values of the last row of the
// previous page and the logical fields they belong to. Positions are request-scoped.
type Position struct {
	Primary        string
	PrimaryField   string
	Secondary      string
	SecondaryField string
}

// HasSecondary reports whether the position carries a secondary sort key.
func (p Position) HasSecondary() bool {
	return p.SecondaryField != ""
}

// EncodePosition renders a position as an opaque token: url-form encoding wrapped in base64.
func EncodePosition(p Position) string {
	values := url.Values{}
	values.Set(positionPrimary, p.Primary)
	values.Set(positionPrimaryField, p.PrimaryField)
	if p.HasSecondary() {
		values.Set(positionSecondary, p.Secondary)
		values.Set(positionSecondaryField, p.SecondaryField)
	}
	return base64.StdEncoding.EncodeToString([]byte(values.Encode()))
}

// DecodePosition parses a token produced by EncodePosition.
// Structural completeness (primary value and field present) is checked when the resume stage is built.
func DecodePosition(token string) (*Position, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, InvalidPagination("cursor is not valid base64: %v", err)
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, InvalidPagination("cursor is not valid url encoding: %v", err)
	}
	return &Position{
		Primary:        values.Get(positionPrimary),
		PrimaryField:   values.Get(positionPrimaryField),
		Secondary:      values.Get(positionSecondary),
		SecondaryField: values.Get(positionSecondaryField),
	}, nil
}
