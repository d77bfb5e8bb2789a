// Package keyset implements cursor ("keyset") pagination on top of query.SearchSpec.
//
// A listing is resumed from the sort-key values of the last row of the previous page rather than
// from a numeric offset. Next encodes those values into an opaque token; ResumeStage turns a
// decoded token back into a $match stage that selects only rows strictly past the boundary in
// the active sort order. Up to two sort keys are carried: the primary order and, when present,
// the secondary order that breaks primary ties.
package keyset
