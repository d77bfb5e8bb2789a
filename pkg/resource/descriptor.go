package resource

import (
	"errors"
	"fmt"

	"github.com/nimburion/movieship/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DescriptorConfig is the declarative description of a resource.
type DescriptorConfig struct {
	// Name labels logs, spans and metrics. Defaults to Collection.
	Name       string
	Collection string
	// IdentifierField is the logical field FetchOne and Update match on.
	IdentifierField string
	IdentityOrder   query.Order
	// Fields maps logical names to storage paths; a leading "$" is accepted.
	Fields map[string]string
	// ObjectIDFields lists logical fields stored as ObjectIDs.
	ObjectIDFields []string
	// StringFields and NumberFields pin the type wire values are coerced to for filters,
	// cursors and identifier lookups. Undeclared fields use query.Coerce.
	StringFields []string
	NumberFields []string
	FilterFields []string
	OrderFields  []string
	PageSize     int
	// Stages run after $limit and before $project on every fetch. They must keep one row per
	// document, so $unwind and other row-changing operators are rejected.
	Stages mongo.Pipeline
	// DetailStages run after Stages on single-document fetches only and may change the row count.
	DetailStages mongo.Pipeline
}

// rowChangingStages are the operators that can add or drop rows after $limit.
var rowChangingStages = map[string]struct{}{
	"$unwind":     {},
	"$match":      {},
	"$group":      {},
	"$limit":      {},
	"$skip":       {},
	"$sample":     {},
	"$facet":      {},
	"$bucket":     {},
	"$bucketAuto": {},
	"$unionWith":  {},
	"$redact":     {},
}

// Descriptor is a validated, immutable resource declaration. It is safe for concurrent use.
type Descriptor struct {
	name            string
	collection      string
	identifierField string
	identityOrder   query.Order
	mapping         *query.FieldMapping
	filterFields    query.FieldSet
	orderFields     query.FieldSet
	pageSize        int
	stages          mongo.Pipeline
	detailStages    mongo.Pipeline
}

// NewDescriptor validates cfg. Every field it names must be present in the field mapping.
func NewDescriptor(cfg DescriptorConfig) (*Descriptor, error) {
	if cfg.Collection == "" {
		return nil, errors.New("collection is required")
	}
	if cfg.IdentifierField == "" {
		return nil, errors.New("identifier field is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}

	mapping, err := query.NewFieldMapping(cfg.Fields, cfg.ObjectIDFields...)
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", cfg.Collection, err)
	}
	if mapping, err = mapping.WithKinds(query.KindString, cfg.StringFields...); err != nil {
		return nil, fmt.Errorf("resource %s: %w", cfg.Collection, err)
	}
	if mapping, err = mapping.WithKinds(query.KindNumber, cfg.NumberFields...); err != nil {
		return nil, fmt.Errorf("resource %s: %w", cfg.Collection, err)
	}
	for _, stage := range cfg.Stages {
		for _, op := range stage {
			if _, ok := rowChangingStages[op.Key]; ok {
				return nil, fmt.Errorf("resource %s: stage %s changes the row count after $limit, declare it in DetailStages", cfg.Collection, op.Key)
			}
		}
	}

	referenced := []string{cfg.IdentifierField, cfg.IdentityOrder.Field}
	referenced = append(referenced, cfg.FilterFields...)
	referenced = append(referenced, cfg.OrderFields...)
	if err := mapping.Validate(referenced...); err != nil {
		return nil, fmt.Errorf("resource %s: %w", cfg.Collection, err)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Collection
	}

	stages := append(mongo.Pipeline(nil), cfg.Stages...)
	detailStages := append(mongo.Pipeline(nil), cfg.DetailStages...)

	return &Descriptor{
		name:            name,
		collection:      cfg.Collection,
		identifierField: cfg.IdentifierField,
		identityOrder:   cfg.IdentityOrder,
		mapping:         mapping,
		filterFields:    query.NewFieldSet(cfg.FilterFields...),
		orderFields:     query.NewFieldSet(cfg.OrderFields...),
		pageSize:        cfg.PageSize,
		stages:          stages,
		detailStages:    detailStages,
	}, nil
}

// MustDescriptor is NewDescriptor for package-level declarations; it panics on error.
func MustDescriptor(cfg DescriptorConfig) *Descriptor {
	d, err := NewDescriptor(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// Name labels the resource in logs, spans and metrics.
func (d *Descriptor) Name() string { return d.name }

// Collection is the store collection the resource reads and writes.
func (d *Descriptor) Collection() string { return d.collection }

// IdentifierField is the logical field single-document operations match on.
func (d *Descriptor) IdentifierField() string { return d.identifierField }

// IdentityOrder is the order applied when a listing names none.
func (d *Descriptor) IdentityOrder() query.Order { return d.identityOrder }

// Mapping returns the logical-to-storage field mapping, field kinds included.
func (d *Descriptor) Mapping() *query.FieldMapping { return d.mapping }

// PageSize is the default and maximum listing limit.
func (d *Descriptor) PageSize() int { return d.pageSize }

// Policy returns the request-parsing policy of the resource.
func (d *Descriptor) Policy() query.Policy {
	return query.Policy{
		IdentityOrder: d.identityOrder,
		FilterFields:  d.filterFields,
		OrderFields:   d.orderFields,
		PageSize:      d.pageSize,
	}
}

// identifierMatch is the predicate selecting the document whose identifier equals id.
func (d *Descriptor) identifierMatch(id any) (bson.D, error) {
	path, err := d.mapping.Resolve(d.identifierField)
	if err != nil {
		return nil, err
	}
	value := query.CoerceField(d.mapping, d.identifierField, id)
	return bson.D{{Key: path, Value: bson.D{{Key: "$eq", Value: value}}}}, nil
}

// shape appends the descriptor stages and the projection to a listing pipeline.
func (d *Descriptor) shape(pipeline mongo.Pipeline) mongo.Pipeline {
	pipeline = append(pipeline, d.stages...)
	return append(pipeline, bson.D{{Key: "$project", Value: d.mapping.Projection()}})
}

// shapeDetail is shape for single-document fetches, with the detail stages ahead of the projection.
func (d *Descriptor) shapeDetail(pipeline mongo.Pipeline) mongo.Pipeline {
	pipeline = append(pipeline, d.stages...)
	pipeline = append(pipeline, d.detailStages...)
	return append(pipeline, bson.D{{Key: "$project", Value: d.mapping.Projection()}})
}
