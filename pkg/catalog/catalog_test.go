package catalog

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/nimburion/movieship/pkg/repository/document"
	"github.com/nimburion/movieship/pkg/resource"
	"github.com/nimburion/movieship/pkg/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCatalog(t *testing.T, opts ...Option) (*Catalog, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewMemStore()
	store.UniqueIndex(ProfilesCollection, "sub")
	store.UniqueIndex(ProfilesCollection, "name")
	store.UniqueIndex(ReviewsCollection, "user", "imdb_id")
	store.UniqueIndex(WatchlistsCollection, "sub", "title")

	ids := 0
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			ids++
			return "uuid-" + string(rune('0'+ids))
		}),
	}, opts...)
	return New(store, opts...), store
}

func seedShows(store *testutil.MemStore, ids ...string) {
	for i, id := range ids {
		store.Seed(MoviesCollection, bson.M{
			"tconst":       id,
			"primaryTitle": "Title " + id,
			"titleType":    "movie",
			"startYear":    int64(1990 + i),
			"poster":       "https://img/" + id,
		})
	}
}

func TestCatalog_Resources(t *testing.T) {
	c, _ := newTestCatalog(t)
	want := []string{ResourceMovies, ResourceProfiles, ResourceReviews, ResourceWatchlists}
	if got := c.Resources(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Resources() = %v, want %v", got, want)
	}
	if _, err := c.List(context.Background(), "actors", nil); !errors.Is(err, resource.ErrNotFound) {
		t.Fatal("expected error for unknown resource")
	}
	if _, err := c.Get(context.Background(), "actors", "x"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatal("expected error for unknown resource")
	}
}

func TestIndexes(t *testing.T) {
	indexes := Indexes()
	if len(indexes) != 4 {
		t.Fatalf("expected 4 indexes, got %d", len(indexes))
	}
	for _, idx := range indexes {
		if !idx.Unique || idx.Name == "" || len(idx.Keys) == 0 {
			t.Fatalf("malformed index %+v", idx)
		}
	}
}

func TestListMovies(t *testing.T) {
	c, store := newTestCatalog(t)
	seedShows(store, "tt3", "tt1", "tt2")

	page, err := c.ListMovies(context.Background(), url.Values{"od": {"startYear"}, "l": {"2"}})
	if err != nil {
		t.Fatalf("ListMovies failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0]["imdb_id"] != "tt2" || page.Items[1]["imdb_id"] != "tt1" {
		t.Fatalf("unexpected page %v", page.Items)
	}
	if page.Cursor == nil {
		t.Fatal("expected a cursor on a full page")
	}
	if _, ok := page.Items[0]["_id"].(string); !ok {
		t.Fatalf("expected stringified _id, got %T", page.Items[0]["_id"])
	}

	next, err := c.ListMovies(context.Background(), url.Values{"od": {"startYear"}, "l": {"2"}, "p": {page.Cursor.Next}})
	if err != nil {
		t.Fatalf("ListMovies (next) failed: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0]["imdb_id"] != "tt3" || next.Cursor != nil {
		t.Fatalf("unexpected second page %v (cursor %v)", next.Items, next.Cursor)
	}
}

func TestGetMovie(t *testing.T) {
	c, store := newTestCatalog(t)
	seedShows(store, "tt1")

	movie, err := c.GetMovie(context.Background(), "tt1")
	if err != nil {
		t.Fatalf("GetMovie failed: %v", err)
	}
	if movie["primaryTitle"] != "Title tt1" {
		t.Fatalf("unexpected movie %v", movie)
	}
	if _, err := c.GetMovie(context.Background(), "tt404"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfiles(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	if _, err := c.GetProfile(ctx, "auth0|ada"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := c.CreateProfile(ctx, "auth0|ada", document.Document{"name": "Ada", "sub": "forged", "uuid": "forged"})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if created["sub"] != "auth0|ada" || created["uuid"] != "uuid-1" || created["name"] != "Ada" {
		t.Fatalf("unexpected profile %v", created)
	}

	if _, err := c.CreateProfile(ctx, "auth0|ada", document.Document{"name": "Ada 2"}); !errors.Is(err, ErrProfileAlreadyExists) {
		t.Fatalf("expected ErrProfileAlreadyExists, got %v", err)
	}

	if _, err := c.CreateProfile(ctx, "auth0|bob", document.Document{"name": "Bob"}); err != nil {
		t.Fatalf("CreateProfile (bob) failed: %v", err)
	}
	_, err = c.UpdateProfile(ctx, "auth0|bob", document.Document{"name": "Ada"})
	if !errors.Is(err, ErrDisplayNameDuplicate) || !errors.Is(err, resource.ErrDuplicateKey) {
		t.Fatalf("expected ErrDisplayNameDuplicate wrapping the duplicate key, got %v", err)
	}

	updated, err := c.UpdateProfile(ctx, "auth0|bob", document.Document{"name": "Robert", "sub": "forged"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated["name"] != "Robert" || updated["sub"] != "auth0|bob" {
		t.Fatalf("unexpected update %v", updated)
	}

	if _, err := c.UpdateProfile(ctx, "auth0|bob", document.Document{"sub": "only-protected"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddToWatchlist(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()
	seedShows(store, "tt1", "tt2")

	if _, err := c.AddToWatchlist(ctx, "auth0|ada", WatchlistEntry{Title: "fav", IMDbID: "tt1"}); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a profile, got %v", err)
	}
	if _, err := c.AddToWatchlist(ctx, "auth0|ada", WatchlistEntry{Title: "fav"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := c.CreateProfile(ctx, "auth0|ada", document.Document{"name": "Ada"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	steps := []WatchlistEntry{
		{Title: "fav", IMDbID: "tt1"},
		{Title: "fav", IMDbID: "tt2"},
		{Title: "later", IMDbID: "tt1"},
		{Title: "fav", IMDbID: "tt2"},
	}
	var view document.Document
	for _, step := range steps {
		var err error
		view, err = c.AddToWatchlist(ctx, "auth0|ada", step)
		if err != nil {
			t.Fatalf("AddToWatchlist(%+v) failed: %v", step, err)
		}
	}

	stored := store.Documents(ProfilesCollection)[0]["watchlist"]
	want := bson.A{
		bson.M{"title": "later", "imdb_ids": bson.A{"tt1"}},
		bson.M{"title": "fav", "imdb_ids": bson.A{"tt1", "tt2"}},
	}
	if !reflect.DeepEqual(stored, want) {
		t.Fatalf("stored watchlist = %v, want %v", stored, want)
	}

	movies, ok := view["watchlist_movies"].(bson.A)
	if !ok || len(movies) != 1 {
		t.Fatalf("expected the first list joined with its movie, got %v", view["watchlist_movies"])
	}
	movie := movies[0].(bson.M)
	if movie["tconst"] != "tt1" {
		t.Fatalf("unexpected joined movie %v", movie)
	}
	if _, ok := movie["_id"].(string); !ok {
		t.Fatalf("joined movie _id must be stringified, got %T", movie["_id"])
	}
}

func TestReviews(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()

	if _, err := c.CreateReview(ctx, "tt1", "auth0|ada", document.Document{"comment": "great"}); !errors.Is(err, ErrProfileNotValid) {
		t.Fatalf("expected ErrProfileNotValid without profile, got %v", err)
	}
	if _, err := c.CreateProfile(ctx, "auth0|anon", document.Document{}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if _, err := c.CreateReview(ctx, "tt1", "auth0|anon", document.Document{"comment": "meh"}); !errors.Is(err, ErrProfileNotValid) {
		t.Fatalf("expected ErrProfileNotValid for a nameless profile, got %v", err)
	}

	if _, err := c.CreateProfile(ctx, "auth0|ada", document.Document{"name": "Ada"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	review, err := c.CreateReview(ctx, "tt1", "auth0|ada", document.Document{"comment": "great", "rating": int64(5), "user": "forged"})
	if err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}
	if review["user"] != "auth0|ada" || review["username"] != "Ada" || review["timestamp"] != fixedNow.Unix() || review["imdb_id"] != "tt1" {
		t.Fatalf("unexpected review %v", review)
	}
	if _, ok := review["_id"].(string); !ok {
		t.Fatalf("expected stringified _id, got %T", review["_id"])
	}

	if _, err := c.CreateReview(ctx, "tt1", "auth0|ada", document.Document{"comment": "again"}); !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}

	store.Seed(ReviewsCollection,
		bson.M{"imdb_id": "tt1", "user": "auth0|old", "comment": "older", "timestamp": fixedNow.Unix() - 100},
		bson.M{"imdb_id": "tt2", "user": "auth0|ada", "comment": "other title", "timestamp": fixedNow.Unix() + 100},
	)
	page, err := c.ListReviews(ctx, "tt1", nil)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0]["comment"] != "great" || page.Items[1]["comment"] != "older" {
		t.Fatalf("unexpected reviews %v", page.Items)
	}
	if page.Cursor != nil {
		t.Fatal("a partial page must not carry a cursor")
	}

	got, err := c.GetReview(ctx, "tt1", "auth0|ada")
	if err != nil || got["comment"] != "great" {
		t.Fatalf("GetReview = %v, %v", got, err)
	}

	updated, err := c.UpdateReview(ctx, "tt1", "auth0|ada", document.Document{"comment": "even better", "timestamp": int64(0)})
	if err != nil {
		t.Fatalf("UpdateReview failed: %v", err)
	}
	if updated["comment"] != "even better" || updated["timestamp"] != fixedNow.Unix() {
		t.Fatalf("unexpected update %v", updated)
	}

	if _, err := c.UpdateReview(ctx, "tt9", "auth0|ada", document.Document{"comment": "x"}); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a missing review, got %v", err)
	}

	deleted, err := c.DeleteReview(ctx, "tt1", "auth0|ada")
	if err != nil || deleted["comment"] != "even better" {
		t.Fatalf("DeleteReview = %v, %v", deleted, err)
	}
	if _, err := c.GetReview(ctx, "tt1", "auth0|ada"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWatchlists(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()
	seedShows(store, "tt1")

	if _, err := c.CreateWatchlist(ctx, "auth0|ada", document.Document{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without title, got %v", err)
	}

	fav, err := c.CreateWatchlist(ctx, "auth0|ada", document.Document{"title": "fav", "sub": "forged", "watchlist": bson.A{"tt9"}})
	if err != nil {
		t.Fatalf("CreateWatchlist failed: %v", err)
	}
	if fav["sub"] != "auth0|ada" || !reflect.DeepEqual(fav["watchlist"], bson.A{}) {
		t.Fatalf("unexpected watchlist %v", fav)
	}
	id, ok := fav["_id"].(string)
	if !ok {
		t.Fatalf("expected stringified _id, got %T", fav["_id"])
	}

	if _, err := c.CreateWatchlist(ctx, "auth0|ada", document.Document{"title": "fav"}); !errors.Is(err, ErrWatchlistNameTaken) {
		t.Fatalf("expected ErrWatchlistNameTaken, got %v", err)
	}
	if _, err := c.CreateWatchlist(ctx, "auth0|bob", document.Document{"title": "fav"}); err != nil {
		t.Fatalf("another owner may reuse the title: %v", err)
	}

	page, err := c.ListWatchlists(ctx, "auth0|ada", nil)
	if err != nil {
		t.Fatalf("ListWatchlists failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0]["_id"] != id {
		t.Fatalf("listing must be scoped to the owner, got %v", page.Items)
	}

	if _, err := c.GetWatchlist(ctx, "auth0|bob", id); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	if _, err := c.GetWatchlist(ctx, "auth0|ada", "not-an-id"); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a malformed id, got %v", err)
	}

	updated, err := c.UpdateWatchlist(ctx, "auth0|ada", id, document.Document{"watchlist": bson.A{"tt1"}})
	if err != nil {
		t.Fatalf("UpdateWatchlist failed: %v", err)
	}
	movies, ok := updated["watchlist_movies"].(bson.A)
	if !ok || len(movies) != 1 {
		t.Fatalf("expected one joined movie, got %v", updated["watchlist_movies"])
	}
	if _, ok := movies[0].(bson.M)["_id"].(string); !ok {
		t.Fatal("joined movie _id must be stringified")
	}

	if _, err := c.UpdateWatchlist(ctx, "auth0|ada", id, document.Document{"_id": "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	deleted, err := c.DeleteWatchlist(ctx, "auth0|ada", id)
	if err != nil || deleted["title"] != "fav" {
		t.Fatalf("DeleteWatchlist = %v, %v", deleted, err)
	}
	if _, err := c.DeleteWatchlist(ctx, "auth0|ada", primitive.NewObjectID().Hex()); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProfiles_OneRowPerProfile(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()
	seedShows(store, "tt1", "tt2")
	for _, sub := range []string{"auth0|a", "auth0|b", "auth0|c"} {
		store.Seed(ProfilesCollection, bson.M{
			"sub":  sub,
			"name": "name " + sub,
			"watchlist": bson.A{
				bson.M{"title": "fav", "imdb_ids": bson.A{"tt1"}},
				bson.M{"title": "later", "imdb_ids": bson.A{"tt2"}},
			},
		})
	}

	var subs []string
	values := url.Values{"l": {"2"}}
	for pages := 0; ; pages++ {
		if pages > 3 {
			t.Fatalf("listing did not terminate, seen %v", subs)
		}
		page, err := c.List(ctx, ResourceProfiles, values)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Items) > 2 {
			t.Fatalf("page exceeds its limit: %d items", len(page.Items))
		}
		for _, item := range page.Items {
			subs = append(subs, item["sub"].(string))
		}
		if pages == 0 && page.Cursor == nil {
			t.Fatal("expected a cursor on the first full page")
		}
		if page.Cursor == nil {
			break
		}
		values.Set("p", page.Cursor.Next)
	}
	if want := []string{"auth0|a", "auth0|b", "auth0|c"}; !reflect.DeepEqual(subs, want) {
		t.Fatalf("walked %v, want %v", subs, want)
	}

	one, err := c.GetProfile(ctx, "auth0|b")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	movies, ok := one["watchlist_movies"].(bson.A)
	if !ok || len(movies) != 1 || movies[0].(bson.M)["tconst"] != "tt1" {
		t.Fatalf("single fetch must join the first watchlist, got %v", one["watchlist_movies"])
	}
}

func TestListMovies_ResumesAfterDigitTitle(t *testing.T) {
	c, store := newTestCatalog(t)
	for i, title := range []string{"Brazil", "1917", "Alien"} {
		store.Seed(MoviesCollection, bson.M{
			"tconst":       "tt" + string(rune('1'+i)),
			"primaryTitle": title,
			"titleType":    "movie",
		})
	}

	var titles []string
	values := url.Values{"oa": {"primaryTitle"}, "l": {"1"}}
	for pages := 0; pages < 5; pages++ {
		page, err := c.ListMovies(context.Background(), values)
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		for _, item := range page.Items {
			titles = append(titles, item["primaryTitle"].(string))
		}
		if page.Cursor == nil {
			break
		}
		values.Set("p", page.Cursor.Next)
	}
	if want := []string{"1917", "Alien", "Brazil"}; !reflect.DeepEqual(titles, want) {
		t.Fatalf("walked %v, want %v", titles, want)
	}
}

func TestNumericSubject(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()
	seedShows(store, "tt1")
	const sub = "104729"

	created, err := c.CreateProfile(ctx, sub, document.Document{"name": "Primes"})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if created["sub"] != sub {
		t.Fatalf("unexpected profile %v", created)
	}
	if got, err := c.GetProfile(ctx, sub); err != nil || got["name"] != "Primes" {
		t.Fatalf("GetProfile = %v, %v", got, err)
	}

	review, err := c.CreateReview(ctx, "tt1", sub, document.Document{"comment": "prime"})
	if err != nil {
		t.Fatalf("CreateReview failed: %v", err)
	}
	if review["username"] != "Primes" {
		t.Fatalf("expected the joined author name, got %v", review)
	}
	if _, err := c.UpdateReview(ctx, "tt1", sub, document.Document{"comment": "still prime"}); err != nil {
		t.Fatalf("UpdateReview failed: %v", err)
	}
	if _, err := c.DeleteReview(ctx, "tt1", sub); err != nil {
		t.Fatalf("DeleteReview failed: %v", err)
	}

	if _, err := c.CreateWatchlist(ctx, sub, document.Document{"title": "fav"}); err != nil {
		t.Fatalf("CreateWatchlist failed: %v", err)
	}
	page, err := c.ListWatchlists(ctx, sub, nil)
	if err != nil {
		t.Fatalf("ListWatchlists failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0]["sub"] != sub {
		t.Fatalf("expected the owner's watchlist, got %v", page.Items)
	}
}
