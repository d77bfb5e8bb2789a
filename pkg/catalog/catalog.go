// Package catalog wires the movieship resources (movies, profiles, reviews and watchlists) onto
// the resource engine and implements their owner-scoped operations.
//
// Every operation that acts on behalf of a user takes the caller's identity subject explicitly;
// extracting it from a token is the caller's job (see pkg/auth).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/query"
	"github.com/nimburion/movieship/pkg/repository/document"
	"github.com/nimburion/movieship/pkg/resource"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Resource names, as accepted by Engine.
const (
	ResourceMovies     = "movies"
	ResourceProfiles   = "profiles"
	ResourceReviews    = "reviews"
	ResourceWatchlists = "watchlists"
)

// Catalog runs the movieship operations against one document store.
type Catalog struct {
	store   document.Executor
	engines map[string]*resource.Engine
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

type options struct {
	logger      logger.Logger
	posters     PosterSource
	placeholder string
	now         func() time.Time
	newID       func() string
}

// Option configures a Catalog.
type Option func(*options)

// WithLogger sets the logger used by the catalog and its engines.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPosterSource enables movie poster backfill. An empty placeholder selects PlaceholderPoster.
func WithPosterSource(source PosterSource, placeholder string) Option {
	return func(o *options) {
		o.posters = source
		o.placeholder = placeholder
	}
}

// WithClock replaces time.Now for review timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator replaces the generator of profile uuids.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// New creates a Catalog over store.
func New(store document.Executor, opts ...Option) *Catalog {
	o := options{
		logger: logger.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	movieEnhancer := StringifyIDs()
	if o.posters != nil {
		movieEnhancer = resource.Chain(NewPosterEnhancer(o.posters, o.placeholder, o.logger), movieEnhancer)
	}

	engineOpts := []resource.Option{resource.WithLogger(o.logger)}
	return &Catalog{
		store: store,
		engines: map[string]*resource.Engine{
			ResourceMovies:     resource.New(MoviesDescriptor, movieEnhancer, engineOpts...),
			ResourceProfiles:   resource.New(ProfilesDescriptor, StringifyIDs("watchlist_movies"), engineOpts...),
			ResourceReviews:    resource.New(ReviewsDescriptor, StringifyIDs(), engineOpts...),
			ResourceWatchlists: resource.New(WatchlistsDescriptor, StringifyIDs("watchlist_movies"), engineOpts...),
		},
		logger: o.logger.With("component", "catalog"),
		now:    o.now,
		newID:  o.newID,
	}
}

// Resources returns the resource names in lexical order.
func (c *Catalog) Resources() []string {
	names := make([]string, 0, len(c.engines))
	for name := range c.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine returns the engine of a resource by name.
func (c *Catalog) Engine(name string) (*resource.Engine, bool) {
	e, ok := c.engines[name]
	return e, ok
}

// List runs an unscoped listing of any resource from raw query parameters.
func (c *Catalog) List(ctx context.Context, name string, values url.Values) (*resource.Page, error) {
	e, ok := c.Engine(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q", resource.ErrNotFound, name)
	}
	spec, err := e.SearchSpec(values)
	if err != nil {
		return nil, err
	}
	return e.FetchList(ctx, c.store, &spec)
}

// Get fetches any resource by its identifier.
func (c *Catalog) Get(ctx context.Context, name, id string) (document.Document, error) {
	e, ok := c.Engine(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %q", resource.ErrNotFound, name)
	}
	return e.FetchOne(ctx, c.store, id)
}

// ListMovies returns one page of the movie catalog.
func (c *Catalog) ListMovies(ctx context.Context, values url.Values) (*resource.Page, error) {
	return c.List(ctx, ResourceMovies, values)
}

// GetMovie returns one movie by IMDb identifier.
func (c *Catalog) GetMovie(ctx context.Context, imdbID string) (document.Document, error) {
	return c.Get(ctx, ResourceMovies, imdbID)
}

// scoped lists name restricted to field == value on top of the caller's parameters.
func (c *Catalog) scoped(ctx context.Context, name string, values url.Values, field, value string) (*resource.Page, error) {
	e := c.engines[name]
	spec, err := e.SearchSpec(values)
	if err != nil {
		return nil, err
	}
	spec = spec.WithFilter(query.Filter{Field: field, Value: value, Mode: query.Equal})
	return e.FetchList(ctx, c.store, &spec)
}

// writable copies input without the keys the server owns.
func writable(input document.Document, protected ...string) document.Document {
	out := make(document.Document, len(input))
	for k, v := range input {
		out[k] = v
	}
	for _, k := range protected {
		delete(out, k)
	}
	return out
}

func eq(path string, value any) bson.D {
	return bson.D{{Key: path, Value: bson.D{{Key: "$eq", Value: value}}}}
}

// translateDuplicate maps a duplicate-key failure to the operation's domain error.
func translateDuplicate(err error, domain error) error {
	if errors.Is(err, resource.ErrDuplicateKey) {
		return fmt.Errorf("%w: %w", domain, err)
	}
	return err
}

// GetProfile returns the profile of sub.
func (c *Catalog) GetProfile(ctx context.Context, sub string) (document.Document, error) {
	return c.engines[ResourceProfiles].FetchOne(ctx, c.store, sub)
}

// CreateProfile creates the profile of sub with an empty watchlist and a fresh uuid.
func (c *Catalog) CreateProfile(ctx context.Context, sub string, input document.Document) (document.Document, error) {
	doc := writable(input, "_id", "sub", "uuid", "watchlist")
	doc["sub"] = sub
	doc["uuid"] = c.newID()
	doc["watchlist"] = bson.A{}

	created, err := c.engines[ResourceProfiles].CreateWithIdentity(ctx, c.store, doc, sub)
	if err != nil {
		return nil, translateDuplicate(err, ErrProfileAlreadyExists)
	}
	c.logger.WithContext(ctx).Info("profile created", "sub", sub)
	return created, nil
}

// UpdateProfile merges input into the profile of sub.
func (c *Catalog) UpdateProfile(ctx context.Context, sub string, input document.Document) (document.Document, error) {
	partial := writable(input, "_id", "sub", "uuid")
	if len(partial) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	updated, err := c.engines[ResourceProfiles].Update(ctx, c.store, sub, bson.M(partial))
	if err != nil {
		return nil, translateDuplicate(err, ErrDisplayNameDuplicate)
	}
	return updated, nil
}

// WatchlistEntry adds one title to a named list saved on a profile.
type WatchlistEntry struct {
	Title  string `json:"title" validate:"required"`
	IMDbID string `json:"imdb_id" validate:"required"`
}

// AddToWatchlist adds entry.IMDbID to the profile list named entry.Title, creating the list when
// the profile has none by that name. The updated list moves to the end of the profile's lists.
func (c *Catalog) AddToWatchlist(ctx context.Context, sub string, entry WatchlistEntry) (document.Document, error) {
	if entry.Title == "" || entry.IMDbID == "" {
		return nil, fmt.Errorf("%w: title and imdb_id are required", ErrInvalidInput)
	}

	// The profile view unwinds the lists, so the stored array is read directly.
	stored, err := c.store.Aggregate(ctx, ProfilesCollection, mongo.Pipeline{
		{{Key: "$match", Value: eq("sub", sub)}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$project", Value: bson.D{{Key: "watchlist", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("read watchlists of %s: %w", sub, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: sub %s", resource.ErrNotFound, sub)
	}

	lists := bson.A{}
	imdbIDs := bson.A{}
	for _, item := range asSlice(stored[0]["watchlist"]) {
		list, ok := asDocument(item)
		if !ok {
			continue
		}
		if title, _ := list["title"].(string); title == entry.Title {
			imdbIDs = asSlice(list["imdb_ids"])
			continue
		}
		lists = append(lists, list)
	}
	if !containsValue(imdbIDs, entry.IMDbID) {
		imdbIDs = append(imdbIDs, entry.IMDbID)
	}
	lists = append(lists, bson.M{"title": entry.Title, "imdb_ids": imdbIDs})

	return c.engines[ResourceProfiles].UpdateWhere(ctx, c.store, eq("sub", sub), bson.M{"watchlist": lists})
}

// ListReviews returns one page of the reviews of a title.
func (c *Catalog) ListReviews(ctx context.Context, imdbID string, values url.Values) (*resource.Page, error) {
	return c.scoped(ctx, ResourceReviews, values, "imdb_id", imdbID)
}

func reviewMatch(imdbID, sub string) bson.D {
	return query.Conjunction(
		eq("imdb_id", imdbID),
		eq("user", sub),
	)
}

// GetReview returns the review sub wrote for a title.
func (c *Catalog) GetReview(ctx context.Context, imdbID, sub string) (document.Document, error) {
	return c.engines[ResourceReviews].FetchOneByExpression(ctx, c.store, reviewMatch(imdbID, sub))
}

// CreateReview stores the review of sub for a title, stamped with the current time in seconds.
// The author must have a named profile.
func (c *Catalog) CreateReview(ctx context.Context, imdbID, sub string, input document.Document) (document.Document, error) {
	profile, err := c.GetProfile(ctx, sub)
	if errors.Is(err, resource.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotValid, sub)
	}
	if err != nil {
		return nil, err
	}
	if name, _ := profile["name"].(string); name == "" {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotValid, sub)
	}

	doc := writable(input, "_id", "user", "imdb_id", "timestamp", "username")
	doc["user"] = sub
	doc["imdb_id"] = imdbID
	doc["timestamp"] = c.now().Unix()

	created, err := c.engines[ResourceReviews].Create(ctx, c.store, doc)
	if err != nil {
		return nil, translateDuplicate(err, ErrAlreadyReviewed)
	}
	return created, nil
}

// UpdateReview merges input into the review sub wrote for a title.
func (c *Catalog) UpdateReview(ctx context.Context, imdbID, sub string, input document.Document) (document.Document, error) {
	partial := writable(input, "_id", "user", "imdb_id", "timestamp", "username")
	if len(partial) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	return c.engines[ResourceReviews].UpdateWhere(ctx, c.store, reviewMatch(imdbID, sub), bson.M(partial))
}

// DeleteReview removes the review sub wrote for a title and returns it.
func (c *Catalog) DeleteReview(ctx context.Context, imdbID, sub string) (document.Document, error) {
	return c.engines[ResourceReviews].Delete(ctx, c.store, reviewMatch(imdbID, sub))
}

// ListWatchlists returns one page of the watchlists owned by sub.
func (c *Catalog) ListWatchlists(ctx context.Context, sub string, values url.Values) (*resource.Page, error) {
	return c.scoped(ctx, ResourceWatchlists, values, "sub", sub)
}

func watchlistMatch(sub, id string) (bson.D, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: watchlist %q", resource.ErrNotFound, id)
	}
	return query.Conjunction(eq("_id", oid), eq("sub", sub)), nil
}

// GetWatchlist returns a watchlist owned by sub.
func (c *Catalog) GetWatchlist(ctx context.Context, sub, id string) (document.Document, error) {
	match, err := watchlistMatch(sub, id)
	if err != nil {
		return nil, err
	}
	return c.engines[ResourceWatchlists].FetchOneByExpression(ctx, c.store, match)
}

// CreateWatchlist creates an empty watchlist owned by sub. Titles are unique per owner.
func (c *Catalog) CreateWatchlist(ctx context.Context, sub string, input document.Document) (document.Document, error) {
	doc := writable(input, "_id", "sub", "watchlist")
	if title, _ := doc["title"].(string); title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	doc["sub"] = sub
	doc["watchlist"] = bson.A{}

	created, err := c.engines[ResourceWatchlists].Create(ctx, c.store, doc)
	if err != nil {
		return nil, translateDuplicate(err, ErrWatchlistNameTaken)
	}
	return created, nil
}

// UpdateWatchlist merges input into a watchlist owned by sub.
func (c *Catalog) UpdateWatchlist(ctx context.Context, sub, id string, input document.Document) (document.Document, error) {
	match, err := watchlistMatch(sub, id)
	if err != nil {
		return nil, err
	}
	partial := writable(input, "_id", "sub")
	if len(partial) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	updated, err := c.engines[ResourceWatchlists].UpdateWhere(ctx, c.store, match, bson.M(partial))
	if err != nil {
		return nil, translateDuplicate(err, ErrWatchlistNameTaken)
	}
	return updated, nil
}

// DeleteWatchlist removes a watchlist owned by sub and returns it.
func (c *Catalog) DeleteWatchlist(ctx context.Context, sub, id string) (document.Document, error) {
	match, err := watchlistMatch(sub, id)
	if err != nil {
		return nil, err
	}
	return c.engines[ResourceWatchlists].Delete(ctx, c.store, match)
}

func asSlice(v any) bson.A {
	switch arr := v.(type) {
	case bson.A:
		return append(bson.A{}, arr...)
	case []any:
		return append(bson.A{}, arr...)
	case []string:
		out := make(bson.A, 0, len(arr))
		for _, s := range arr {
			out = append(out, s)
		}
		return out
	default:
		return bson.A{}
	}
}

func asDocument(v any) (bson.M, bool) {
	switch doc := v.(type) {
	case bson.M:
		return doc, true
	case bson.D:
		out := make(bson.M, len(doc))
		for _, e := range doc {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

func containsValue(values bson.A, want any) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
