package keyset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nimburion/movieship/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
)

func testMapping() *query.FieldMapping {
	return query.MustFieldMapping(map[string]string{
		"imdb_id":   "$tconst",
		"startYear": "$startYear",
		"title":     "$primaryTitle",
	})
}

func TestResumeStage_Nil(t *testing.T) {
	stage, err := ResumeStage(nil, []query.Order{query.Asc("imdb_id")}, testMapping())
	if err != nil || stage != nil {
		t.Fatalf("expected no stage, got %v, %v", stage, err)
	}
}

func TestResumeStage_SingleKey(t *testing.T) {
	pos := &query.Position{Primary: "tt0000005", PrimaryField: "imdb_id"}
	stage, err := ResumeStage(pos, []query.Order{query.Asc("imdb_id")}, testMapping())
	if err != nil {
		t.Fatalf("ResumeStage failed: %v", err)
	}

	want := bson.D{{Key: "$match", Value: bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "tconst", Value: bson.D{{Key: "$gte", Value: "tt0000005"}}}},
		}}},
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tconst", Value: bson.D{{Key: "$ne", Value: "tt0000005"}}}},
		}}},
	}}}}}
	if !reflect.DeepEqual(stage, want) {
		t.Fatalf("stage =\n%v\nwant\n%v", stage, want)
	}
}

func TestResumeStage_StringFieldKeepsDigits(t *testing.T) {
	mapping, err := testMapping().WithKinds(query.KindString, "title")
	if err != nil {
		t.Fatalf("WithKinds failed: %v", err)
	}
	last := bson.M{"title": "1917"}
	orders := []query.Order{query.Asc("title")}

	token, err := Next(last, orders)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	pos, err := query.DecodePosition(token)
	if err != nil {
		t.Fatalf("DecodePosition failed: %v", err)
	}
	stage, err := ResumeStage(pos, orders, mapping)
	if err != nil {
		t.Fatalf("ResumeStage failed: %v", err)
	}

	want := bson.D{{Key: "$match", Value: bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "primaryTitle", Value: bson.D{{Key: "$gte", Value: "1917"}}}},
		}}},
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "primaryTitle", Value: bson.D{{Key: "$ne", Value: "1917"}}}},
		}}},
	}}}}}
	if !reflect.DeepEqual(stage, want) {
		t.Fatalf("stage =\n%v\nwant\n%v", stage, want)
	}
}

func TestResumeStage_TwoKeys(t *testing.T) {
	pos := &query.Position{Primary: "1994", PrimaryField: "startYear", Secondary: "tt0000002", SecondaryField: "imdb_id"}
	orders := []query.Order{query.Desc("startYear"), query.Asc("imdb_id")}

	stage, err := ResumeStage(pos, orders, testMapping())
	if err != nil {
		t.Fatalf("ResumeStage failed: %v", err)
	}

	want := bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "startYear", Value: bson.D{{Key: "$eq", Value: int64(1994)}}}},
			bson.D{{Key: "tconst", Value: bson.D{{Key: "$gte", Value: "tt0000002"}}}},
			bson.D{{Key: "tconst", Value: bson.D{{Key: "$ne", Value: "tt0000002"}}}},
		}}},
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "startYear", Value: bson.D{{Key: "$lte", Value: int64(1994)}}}},
			bson.D{{Key: "startYear", Value: bson.D{{Key: "$ne", Value: int64(1994)}}}},
		}}},
	}}}}}
	if !reflect.DeepEqual(stage, want) {
		t.Fatalf("stage =\n%v\nwant\n%v", stage, want)
	}
}

func TestResumeStage_Errors(t *testing.T) {
	two := []query.Order{query.Desc("startYear"), query.Asc("imdb_id")}
	one := []query.Order{query.Asc("imdb_id")}

	tests := []struct {
		name   string
		pos    query.Position
		orders []query.Order
	}{
		{name: "missing primary value", pos: query.Position{PrimaryField: "imdb_id"}, orders: one},
		{name: "missing primary field", pos: query.Position{Primary: "tt1"}, orders: one},
		{name: "no orders", pos: query.Position{Primary: "tt1", PrimaryField: "imdb_id"}, orders: nil},
		{name: "primary field mismatch", pos: query.Position{Primary: "1994", PrimaryField: "startYear"}, orders: one},
		{name: "single key with two orders", pos: query.Position{Primary: "1994", PrimaryField: "startYear"}, orders: two},
		{
			name:   "two keys with one order",
			pos:    query.Position{Primary: "tt1", PrimaryField: "imdb_id", Secondary: "1994", SecondaryField: "startYear"},
			orders: one,
		},
		{
			name:   "secondary field mismatch",
			pos:    query.Position{Primary: "1994", PrimaryField: "startYear", Secondary: "x", SecondaryField: "title"},
			orders: two,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.pos
			if _, err := ResumeStage(&pos, tt.orders, testMapping()); !errors.Is(err, query.ErrInvalidPagination) {
				t.Fatalf("expected ErrInvalidPagination, got %v", err)
			}
		})
	}
}

func TestProperty_CursorResumesOnItsOwnOrdering(t *testing.T) {
	mapping := testMapping()
	orders := []query.Order{query.Desc("startYear"), query.Asc("imdb_id")}

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("a token from Next is accepted by ResumeStage for the same orders", prop.ForAll(
		func(year int32, id string) bool {
			token, err := Next(bson.M{"startYear": year, "imdb_id": "tt" + id}, orders)
			if err != nil {
				return false
			}
			pos, err := query.DecodePosition(token)
			if err != nil {
				return false
			}
			stage, err := ResumeStage(pos, orders, mapping)
			return err == nil && stage != nil
		},
		gen.Int32Range(1870, 2100),
		gen.NumString(),
	))

	properties.TestingRun(t)
}
