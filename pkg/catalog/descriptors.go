package catalog

import (
	"github.com/nimburion/movieship/pkg/query"
	"github.com/nimburion/movieship/pkg/resource"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names.
const (
	MoviesCollection     = "shows"
	ProfilesCollection   = "profile"
	ReviewsCollection    = "reviews"
	WatchlistsCollection = "watchlist"
)

// PageSize is the page size limit of every catalog listing.
const PageSize = 25

// MoviesDescriptor declares the movie catalog, keyed by IMDb title identifier.
var MoviesDescriptor = resource.MustDescriptor(resource.DescriptorConfig{
	Name:            "movies",
	Collection:      MoviesCollection,
	IdentifierField: "imdb_id",
	IdentityOrder:   query.Asc("imdb_id"),
	Fields: map[string]string{
		"imdb_id":            "$tconst",
		"titleType":          "$titleType",
		"primaryTitle":       "$primaryTitle",
		"originalTitle":      "$originalTitle",
		"startYear":          "$startYear",
		"endYear":            "$endYear",
		"runtimeMinutes":     "$runtimeMinutes",
		"genres":             "$genres",
		"averageRating":      "$averageRating",
		"averageRatingVotes": "$averageRatingVotes",
		"poster":             "$poster",
	},
	StringFields: []string{"imdb_id", "titleType", "primaryTitle", "originalTitle", "genres", "poster"},
	NumberFields: []string{"startYear", "endYear", "runtimeMinutes", "averageRating", "averageRatingVotes"},
	FilterFields: []string{"imdb_id", "primaryTitle", "titleType"},
	OrderFields:  []string{"imdb_id", "startYear", "primaryTitle", "titleType"},
	PageSize:     PageSize,
})

// ProfilesDescriptor declares user profiles, keyed by the identity subject. A single profile fetch
// unwinds the saved watchlists and joins the first one with the movies it references; listings
// return one row per profile.
var ProfilesDescriptor = resource.MustDescriptor(resource.DescriptorConfig{
	Name:            "profiles",
	Collection:      ProfilesCollection,
	IdentifierField: "sub",
	IdentityOrder:   query.Asc("sub"),
	Fields: map[string]string{
		"sub":              "$sub",
		"uuid":             "$uuid",
		"name":             "$name",
		"watchlist":        "$watchlist",
		"watchlist_movies": "$watchlist_movies",
	},
	StringFields: []string{"sub", "uuid", "name"},
	PageSize:     PageSize,
	DetailStages: mongo.Pipeline{
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$watchlist"},
			{Key: "includeArrayIndex", Value: "watch"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: MoviesCollection},
			{Key: "localField", Value: "watchlist.imdb_ids"},
			{Key: "foreignField", Value: "tconst"},
			{Key: "as", Value: "watchlist_movies"},
		}}},
	},
})

// ReviewsDescriptor declares movie reviews, newest first. The author's display name is joined
// from their profile.
var ReviewsDescriptor = resource.MustDescriptor(resource.DescriptorConfig{
	Name:            "reviews",
	Collection:      ReviewsCollection,
	IdentifierField: "_id",
	IdentityOrder:   query.Desc("timestamp"),
	Fields: map[string]string{
		"_id":       "$_id",
		"comment":   "$comment",
		"rating":    "$rating",
		"timestamp": "$timestamp",
		"imdb_id":   "$imdb_id",
		"user":      "$user",
		"username":  "$username",
	},
	ObjectIDFields: []string{"_id"},
	StringFields:   []string{"comment", "imdb_id", "user", "username"},
	NumberFields:   []string{"rating", "timestamp"},
	FilterFields:   []string{"_id", "timestamp"},
	OrderFields:    []string{"_id", "timestamp"},
	PageSize:       PageSize,
	Stages: mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ProfilesCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "sub"},
			{Key: "as", Value: "result"},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "username", Value: bson.D{{Key: "$first", Value: "$result.name"}}},
		}}},
	},
})

// WatchlistsDescriptor declares named watchlists owned by a subject, joined with their movies.
var WatchlistsDescriptor = resource.MustDescriptor(resource.DescriptorConfig{
	Name:            "watchlists",
	Collection:      WatchlistsCollection,
	IdentifierField: "_id",
	IdentityOrder:   query.Asc("_id"),
	Fields: map[string]string{
		"_id":              "$_id",
		"title":            "$title",
		"sub":              "$sub",
		"watchlist":        "$watchlist",
		"watchlist_movies": "$watchlist_movies",
	},
	ObjectIDFields: []string{"_id"},
	StringFields:   []string{"title", "sub"},
	FilterFields:   []string{"_id", "sub", "title"},
	OrderFields:    []string{"_id", "sub", "title"},
	PageSize:       PageSize,
	Stages: mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: MoviesCollection},
			{Key: "localField", Value: "watchlist"},
			{Key: "foreignField", Value: "tconst"},
			{Key: "as", Value: "watchlist_movies"},
		}}},
	},
})
