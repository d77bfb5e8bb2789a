package controller

import (
	"errors"
	"net/http"

	"github.com/nimburion/movieship/pkg/auth"
	"github.com/nimburion/movieship/pkg/catalog"
	"github.com/nimburion/movieship/pkg/query"
	"github.com/nimburion/movieship/pkg/resource"
)

// Error codes carried in the response envelope. Codes 1-6 keep their historical values; a code
// may be shared by unrelated errors.
const (
	CodeInternal             = 1
	CodeNotFound             = 2
	CodeProfileNotValid      = 3
	CodeDisplayNameDuplicate = 3
	CodeAlreadyReviewed      = 4
	CodeWatchlistNameTaken   = 5
	CodeProfileAlreadyExists = 6
	CodeInvalidPagination    = 7
	CodeInvalidInput         = 8
	CodeUnauthorized         = 9
	CodeDuplicateKey         = 10
)

// APIError is one entry of the envelope's error list.
type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type mapping struct {
	target error
	status int
	name   string
	code   int
}

// Domain errors are checked before the generic ones they wrap.
var errorMappings = []mapping{
	{catalog.ErrProfileNotValid, http.StatusBadRequest, "ProfileNotValidException", CodeProfileNotValid},
	{catalog.ErrDisplayNameDuplicate, http.StatusConflict, "DisplayNameDuplicateException", CodeDisplayNameDuplicate},
	{catalog.ErrAlreadyReviewed, http.StatusConflict, "AlreadyReviewedException", CodeAlreadyReviewed},
	{catalog.ErrWatchlistNameTaken, http.StatusConflict, "WatchlistAlreadyExistsWithName", CodeWatchlistNameTaken},
	{catalog.ErrProfileAlreadyExists, http.StatusConflict, "ProfileAlreadyExistsException", CodeProfileAlreadyExists},
	{catalog.ErrInvalidInput, http.StatusBadRequest, "InvalidInputException", CodeInvalidInput},
	{resource.ErrNotFound, http.StatusNotFound, "ResourceNotFoundException", CodeNotFound},
	{query.ErrInvalidPagination, http.StatusBadRequest, "InvalidPaginationException", CodeInvalidPagination},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "AuthError", CodeUnauthorized},
	{resource.ErrDuplicateKey, http.StatusConflict, "DuplicateKeyException", CodeDuplicateKey},
}

// MapError maps an operation error to a status and an envelope error entry.
// Unrecognized errors become a 500 with no detail.
func MapError(err error) (int, APIError) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, APIError{Error: m.name, Code: m.code}
		}
	}
	return http.StatusInternalServerError, APIError{Error: "InternalServerError", Code: CodeInternal}
}
