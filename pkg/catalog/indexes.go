package catalog

import (
	mongostore "github.com/nimburion/movieship/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

// Indexes returns the unique indexes the catalog operations rely on to detect duplicates.
func Indexes() []mongostore.IndexSpec {
	return []mongostore.IndexSpec{
		{
			Collection: ProfilesCollection,
			Name:       "profile_sub_unique",
			Keys:       bson.D{{Key: "sub", Value: 1}},
			Unique:     true,
		},
		{
			Collection: ProfilesCollection,
			Name:       "profile_name_unique",
			Keys:       bson.D{{Key: "name", Value: 1}},
			Unique:     true,
			Sparse:     true,
		},
		{
			Collection: ReviewsCollection,
			Name:       "reviews_user_imdb_id_unique",
			Keys:       bson.D{{Key: "user", Value: -1}, {Key: "imdb_id", Value: -1}},
			Unique:     true,
		},
		{
			Collection: WatchlistsCollection,
			Name:       "watchlist_sub_title_unique",
			Keys:       bson.D{{Key: "sub", Value: -1}, {Key: "title", Value: -1}},
			Unique:     true,
		},
	}
}
