package resource

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/query"
	"github.com/nimburion/movieship/pkg/repository/document"
	mongostore "github.com/nimburion/movieship/pkg/store/mongodb"
	"github.com/nimburion/movieship/pkg/testutil"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEngine_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}
	log, err := logger.NewZapLogger(logger.Config{Level: logger.InfoLevel, Format: logger.JSONFormat})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	adapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              uri,
		Database:         "movieship_engine_it",
		ConnectTimeout:   30 * time.Second,
		OperationTimeout: 10 * time.Second,
	}, log)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	defer adapter.Close()

	store, err := document.NewMongoDBExecutor(adapter)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	seed := func(t *testing.T, collection string, docs ...bson.M) {
		t.Helper()
		for _, doc := range docs {
			if _, err := store.InsertOne(ctx, collection, doc); err != nil {
				t.Fatalf("seed %s: %v", collection, err)
			}
		}
	}

	t.Run("SingleKeyWalk", func(t *testing.T) {
		seed(t, "shows",
			bson.M{"tconst": "tt4", "primaryTitle": "Four", "startYear": int64(1993)},
			bson.M{"tconst": "tt2", "primaryTitle": "Two", "startYear": int64(1991)},
			bson.M{"tconst": "tt5", "primaryTitle": "Five", "startYear": int64(1994)},
			bson.M{"tconst": "tt1", "primaryTitle": "One", "startYear": int64(1990)},
			bson.M{"tconst": "tt3", "primaryTitle": "Three", "startYear": int64(1992)},
		)
		engine := New(moviesDescriptor(t, 2), nil)

		var pages [][]string
		values := url.Values{}
		for i := 0; i < 4; i++ {
			spec, err := engine.SearchSpec(values)
			if err != nil {
				t.Fatalf("SearchSpec failed: %v", err)
			}
			page, err := engine.FetchList(ctx, store, &spec)
			if err != nil {
				t.Fatalf("FetchList failed: %v", err)
			}
			pages = append(pages, ids(page))
			if page.Cursor == nil {
				break
			}
			values.Set(query.ParamPosition, page.Cursor.Next)
		}
		want := [][]string{{"tt1", "tt2"}, {"tt3", "tt4"}, {"tt5"}}
		if !reflect.DeepEqual(pages, want) {
			t.Fatalf("pages = %v, want %v", pages, want)
		}
	})

	t.Run("TwoKeyTieWalk", func(t *testing.T) {
		d, err := NewDescriptor(DescriptorConfig{
			Collection:      "ties",
			IdentifierField: "imdb_id",
			IdentityOrder:   query.Asc("imdb_id"),
			Fields:          map[string]string{"imdb_id": "$tconst", "startYear": "$startYear"},
			StringFields:    []string{"imdb_id"},
			NumberFields:    []string{"startYear"},
			OrderFields:     []string{"imdb_id", "startYear"},
			PageSize:        25,
		})
		if err != nil {
			t.Fatalf("NewDescriptor failed: %v", err)
		}
		seed(t, "ties",
			bson.M{"tconst": "tt1", "startYear": int64(1990)},
			bson.M{"tconst": "tt2", "startYear": int64(1990)},
			bson.M{"tconst": "tt3", "startYear": int64(1990)},
			bson.M{"tconst": "tt4", "startYear": int64(1991)},
			bson.M{"tconst": "tt5", "startYear": int64(1991)},
			bson.M{"tconst": "tt6", "startYear": int64(1992)},
			bson.M{"tconst": "tt7"},
		)
		engine := New(d, nil)
		spec := query.SearchSpec{
			Orders: []query.Order{query.Desc("startYear"), query.Asc("imdb_id")},
			Limit:  2,
		}

		var walked []string
		for i := 0; i < 5; i++ {
			page, err := engine.FetchList(ctx, store, &spec)
			if err != nil {
				t.Fatalf("FetchList failed: %v", err)
			}
			walked = append(walked, ids(page)...)
			if page.Cursor == nil {
				break
			}
			if spec.Position, err = query.DecodePosition(page.Cursor.Next); err != nil {
				t.Fatalf("DecodePosition failed: %v", err)
			}
		}
		want := []string{"tt6", "tt4", "tt5", "tt1", "tt2", "tt3"}
		if !reflect.DeepEqual(walked, want) {
			t.Fatalf("walked %v, want %v", walked, want)
		}
	})

	t.Run("CaseInsensitiveContains", func(t *testing.T) {
		engine := New(moviesDescriptor(t, 25), nil)
		spec := query.SearchSpec{
			Filters: []query.Filter{{Field: "primaryTitle", Value: "^t", Mode: query.ContainsCaseInsensitive}},
			Orders:  []query.Order{query.Asc("imdb_id")},
		}
		page, err := engine.FetchList(ctx, store, &spec)
		if err != nil {
			t.Fatalf("FetchList failed: %v", err)
		}
		if got := ids(page); !reflect.DeepEqual(got, []string{"tt2", "tt3"}) {
			t.Fatalf("matched %v, want [tt2 tt3]", got)
		}
	})

	t.Run("JoinStages", func(t *testing.T) {
		seed(t, "profile", bson.M{"sub": "auth0|ada", "name": "Ada"})
		seed(t, "reviews", bson.M{"user": "auth0|ada", "imdb_id": "tt1", "comment": "great", "timestamp": int64(10)})
		d, err := NewDescriptor(DescriptorConfig{
			Collection:      "reviews",
			IdentifierField: "_id",
			IdentityOrder:   query.Desc("timestamp"),
			Fields: map[string]string{
				"_id": "$_id", "comment": "$comment", "timestamp": "$timestamp", "user": "$user", "username": "$username",
			},
			ObjectIDFields: []string{"_id"},
			PageSize:       25,
			Stages: mongo.Pipeline{
				{{Key: "$lookup", Value: bson.D{
					{Key: "from", Value: "profile"},
					{Key: "localField", Value: "user"},
					{Key: "foreignField", Value: "sub"},
					{Key: "as", Value: "result"},
				}}},
				{{Key: "$set", Value: bson.D{{Key: "username", Value: bson.D{{Key: "$first", Value: "$result.name"}}}}}},
			},
		})
		if err != nil {
			t.Fatalf("NewDescriptor failed: %v", err)
		}
		page, err := New(d, nil).FetchList(ctx, store, nil)
		if err != nil {
			t.Fatalf("FetchList failed: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0]["username"] != "Ada" {
			t.Fatalf("expected the joined username, got %v", page.Items)
		}
		if _, ok := page.Items[0]["result"]; ok {
			t.Fatal("join scratch field must be projected away")
		}
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		err := adapter.EnsureIndexes(ctx, []mongostore.IndexSpec{{
			Collection: "accounts",
			Name:       "accounts_sub_unique",
			Keys:       bson.D{{Key: "sub", Value: 1}},
			Unique:     true,
		}})
		if err != nil {
			t.Fatalf("EnsureIndexes failed: %v", err)
		}
		d, err := NewDescriptor(DescriptorConfig{
			Collection:      "accounts",
			IdentifierField: "sub",
			IdentityOrder:   query.Asc("sub"),
			Fields:          map[string]string{"sub": "$sub", "name": "$name"},
			StringFields:    []string{"sub"},
			PageSize:        25,
		})
		if err != nil {
			t.Fatalf("NewDescriptor failed: %v", err)
		}
		engine := New(d, nil)

		created, err := engine.CreateWithIdentity(ctx, store, document.Document{"sub": "104729", "name": "Primes"}, "104729")
		if err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		if created["sub"] != "104729" {
			t.Fatalf("unexpected created document %v", created)
		}
		_, err = engine.CreateWithIdentity(ctx, store, document.Document{"sub": "104729", "name": "Again"}, "104729")
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		if errors.Is(err, ErrNotFound) {
			t.Fatal("duplicate key must be distinct from not found")
		}
	})
}
