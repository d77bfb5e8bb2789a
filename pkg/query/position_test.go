package query

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPosition_RoundTrip(t *testing.T) {
	p := Position{Primary: "1994", PrimaryField: "startYear", Secondary: "tt0111161", SecondaryField: "imdb_id"}
	got, err := DecodePosition(EncodePosition(p))
	if err != nil {
		t.Fatalf("DecodePosition failed: %v", err)
	}
	if *got != p {
		t.Fatalf("round trip = %+v, want %+v", *got, p)
	}
	if !got.HasSecondary() {
		t.Fatal("expected a secondary key")
	}
}

func TestPosition_SingleKeyOmitsSecondary(t *testing.T) {
	p := Position{Primary: "tt1", PrimaryField: "imdb_id", Secondary: "ignored"}
	got, err := DecodePosition(EncodePosition(p))
	if err != nil {
		t.Fatalf("DecodePosition failed: %v", err)
	}
	if got.HasSecondary() || got.Secondary != "" {
		t.Fatalf("secondary value leaked into a single-key token: %+v", got)
	}
}

func TestDecodePosition_Malformed(t *testing.T) {
	for _, token := range []string{"!!!", "YQ", "JSU="} {
		if _, err := DecodePosition(token); !errors.Is(err, ErrInvalidPagination) {
			t.Errorf("DecodePosition(%q): expected ErrInvalidPagination, got %v", token, err)
		}
	}
}

func TestProperty_PositionRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("decode inverts encode", prop.ForAll(
		func(primary, primaryField, secondary, secondaryField string) bool {
			p := Position{Primary: primary, PrimaryField: primaryField, Secondary: secondary, SecondaryField: secondaryField}
			if !p.HasSecondary() {
				p.Secondary = ""
			}
			got, err := DecodePosition(EncodePosition(p))
			return err == nil && *got == p
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.AnyString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
