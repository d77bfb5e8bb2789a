package testutil

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nimburion/movieship/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemStore is an in-memory document.Executor for tests.
//
// It evaluates the aggregation subset the resource engine emits: $match ($and, $or, $eq, $ne,
// $gt, $gte, $lt, $lte, $in, $regex), $sort, $limit, $project, $set/$addFields ($first),
// $lookup and $unwind. Comparison follows the BSON type order, with all numeric types compared
// by value. Unique indexes declared with UniqueIndex are enforced on insert and update.
type MemStore struct {
	mu          sync.Mutex
	collections map[string][]bson.M
	unique      map[string][][]string
	pipelines   []mongo.Pipeline
	failNext    error
}

var _ document.Executor = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		collections: map[string][]bson.M{},
		unique:      map[string][][]string{},
	}
}

// Seed appends copies of docs to collection, assigning an ObjectID _id where missing.
func (s *MemStore) Seed(collection string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		stored := copyDoc(doc)
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = primitive.NewObjectID()
		}
		s.collections[collection] = append(s.collections[collection], stored)
	}
}

// UniqueIndex declares a compound unique index over fields.
func (s *MemStore) UniqueIndex(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], fields)
}

// Documents returns copies of the stored documents of collection in insertion order.
func (s *MemStore) Documents(collection string) []bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bson.M, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		out = append(out, copyDoc(doc))
	}
	return out
}

// Pipelines returns every pipeline received by Aggregate, oldest first.
func (s *MemStore) Pipelines() []mongo.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mongo.Pipeline(nil), s.pipelines...)
}

// FailNext makes the next operation return err.
func (s *MemStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *MemStore) Aggregate(_ context.Context, collection string, pipeline mongo.Pipeline) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines = append(s.pipelines, pipeline)
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	docs := make([]bson.M, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, copyDoc(doc))
	}

	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage must have exactly one operator, got %d", len(stage))
		}
		var err error
		docs, err = s.applyStage(stage[0], docs)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (s *MemStore) InsertOne(_ context.Context, collection string, doc document.Document) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	stored := copyDoc(doc)
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = primitive.NewObjectID()
	}
	if err := s.checkUnique(collection, stored, -1); err != nil {
		return nil, err
	}
	s.collections[collection] = append(s.collections[collection], stored)
	return stored["_id"], nil
}

func (s *MemStore) UpdateOne(_ context.Context, collection string, filter document.Filter, update bson.M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}

	idx, err := s.find(collection, filter)
	if err != nil || idx < 0 {
		return 0, err
	}
	updated := copyDoc(s.collections[collection][idx])
	for op, arg := range update {
		if op != "$set" {
			return 0, fmt.Errorf("unsupported update operator %s", op)
		}
		for _, e := range entries(arg) {
			setPath(updated, e.Key, copyValue(e.Value))
		}
	}
	if err := s.checkUnique(collection, updated, idx); err != nil {
		return 0, err
	}
	s.collections[collection][idx] = updated
	return 1, nil
}

func (s *MemStore) DeleteOne(_ context.Context, collection string, filter document.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}

	idx, err := s.find(collection, filter)
	if err != nil || idx < 0 {
		return 0, err
	}
	docs := s.collections[collection]
	s.collections[collection] = append(docs[:idx:idx], docs[idx+1:]...)
	return 1, nil
}

func (s *MemStore) BulkSet(_ context.Context, collection string, ops []document.SetOperation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}

	var modified int64
	for _, op := range ops {
		idx, err := s.find(collection, op.Filter)
		if err != nil {
			return modified, err
		}
		if idx < 0 {
			continue
		}
		doc := s.collections[collection][idx]
		changed := false
		for key, value := range op.Set {
			if prev, ok := lookupPath(doc, key); !ok || compareValues(prev, value) != 0 {
				changed = true
			}
			setPath(doc, key, copyValue(value))
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

func (s *MemStore) find(collection string, filter document.Filter) (int, error) {
	for i, doc := range s.collections[collection] {
		ok, err := matches(doc, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func (s *MemStore) checkUnique(collection string, doc bson.M, self int) error {
	for _, fields := range s.unique[collection] {
		for i, other := range s.collections[collection] {
			if i == self {
				continue
			}
			same := true
			for _, f := range fields {
				a, _ := lookupPath(doc, f)
				b, _ := lookupPath(other, f)
				if compareValues(a, b) != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%w: E11000 duplicate key on %s index %s", document.ErrDuplicateKey, collection, strings.Join(fields, "_"))
			}
		}
	}
	return nil
}

func (s *MemStore) applyStage(stage bson.E, docs []bson.M) ([]bson.M, error) {
	switch stage.Key {
	case "$match":
		out := docs[:0:0]
		for _, doc := range docs {
			ok, err := matches(doc, stage.Value)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, doc)
			}
		}
		return out, nil
	case "$sort":
		keys := entries(stage.Value)
		sort.SliceStable(docs, func(i, j int) bool {
			for _, k := range keys {
				a, _ := lookupPath(docs[i], k.Key)
				b, _ := lookupPath(docs[j], k.Key)
				c := compareValues(a, b)
				if c == 0 {
					continue
				}
				if toFloat(k.Value) < 0 {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		return docs, nil
	case "$limit":
		n := int(toFloat(stage.Value))
		if n < len(docs) {
			docs = docs[:n]
		}
		return docs, nil
	case "$project":
		return project(docs, entries(stage.Value)), nil
	case "$set", "$addFields":
		for _, doc := range docs {
			for _, e := range entries(stage.Value) {
				if v, ok := evalExpression(doc, e.Value); ok {
					setPath(doc, e.Key, v)
				}
			}
		}
		return docs, nil
	case "$lookup":
		return s.lookup(docs, stage.Value)
	case "$unwind":
		return unwind(docs, stage.Value), nil
	default:
		return nil, fmt.Errorf("unsupported stage %s", stage.Key)
	}
}

func (s *MemStore) lookup(docs []bson.M, spec any) ([]bson.M, error) {
	args := map[string]string{}
	for _, e := range entries(spec) {
		str, _ := e.Value.(string)
		args[e.Key] = str
	}
	for _, key := range []string{"from", "localField", "foreignField", "as"} {
		if args[key] == "" {
			return nil, fmt.Errorf("$lookup requires %s", key)
		}
	}

	foreign := s.collections[args["from"]]
	for _, doc := range docs {
		local := flatten(collectPath(doc, args["localField"]))
		joined := bson.A{}
		for _, candidate := range foreign {
			remote := flatten(collectPath(candidate, args["foreignField"]))
			if anyEqual(local, remote) {
				joined = append(joined, copyDoc(candidate))
			}
		}
		setPath(doc, args["as"], joined)
	}
	return docs, nil
}

func unwind(docs []bson.M, spec any) []bson.M {
	var path, indexField string
	preserve := false
	if str, ok := spec.(string); ok {
		path = str
	} else {
		for _, e := range entries(spec) {
			switch e.Key {
			case "path":
				path, _ = e.Value.(string)
			case "includeArrayIndex":
				indexField, _ = e.Value.(string)
			case "preserveNullAndEmptyArrays":
				preserve, _ = e.Value.(bool)
			}
		}
	}
	field := strings.TrimPrefix(path, "$")

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		value, ok := lookupPath(doc, field)
		items, isArray := asArray(value)
		switch {
		case ok && isArray && len(items) > 0:
			for i, item := range items {
				clone := copyDoc(doc)
				setPath(clone, field, copyValue(item))
				if indexField != "" {
					clone[indexField] = int64(i)
				}
				out = append(out, clone)
			}
		case ok && value != nil && !isArray:
			if indexField != "" {
				doc[indexField] = nil
			}
			out = append(out, doc)
		case preserve:
			if ok && isArray {
				delete(doc, field)
			}
			if indexField != "" {
				doc[indexField] = nil
			}
			out = append(out, doc)
		}
	}
	return out
}

func project(docs []bson.M, fields []bson.E) []bson.M {
	excludeID := false
	for _, f := range fields {
		if f.Key == "_id" && isFalsy(f.Value) {
			excludeID = true
		}
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		shaped := bson.M{}
		if id, ok := doc["_id"]; ok && !excludeID {
			shaped["_id"] = id
		}
		for _, f := range fields {
			if f.Key == "_id" && isFalsy(f.Value) {
				continue
			}
			switch v := f.Value.(type) {
			case string:
				if strings.HasPrefix(v, "$") {
					if value, ok := resolvePath(doc, strings.TrimPrefix(v, "$")); ok {
						shaped[f.Key] = value
					}
					continue
				}
				shaped[f.Key] = v
			default:
				if isFalsy(v) {
					continue
				}
				if value, ok := lookupPath(doc, f.Key); ok {
					shaped[f.Key] = value
				}
			}
		}
		out = append(out, shaped)
	}
	return out
}

func evalExpression(doc bson.M, expr any) (any, bool) {
	switch v := expr.(type) {
	case string:
		if strings.HasPrefix(v, "$") {
			return resolvePath(doc, strings.TrimPrefix(v, "$"))
		}
		return v, true
	case bson.D, bson.M, map[string]interface{}:
		es := entries(v)
		if len(es) == 1 && es[0].Key == "$first" {
			inner, ok := evalExpression(doc, es[0].Value)
			if !ok {
				return nil, false
			}
			items, isArray := asArray(inner)
			if !isArray || len(items) == 0 {
				return nil, false
			}
			return items[0], true
		}
		return v, true
	default:
		return v, true
	}
}

func matches(doc bson.M, expr any) (bool, error) {
	for _, e := range entries(expr) {
		ok, err := matchEntry(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchEntry(doc bson.M, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or":
		clauses, ok := asArray(e.Value)
		if !ok {
			return false, fmt.Errorf("%s requires an array", e.Key)
		}
		for _, clause := range clauses {
			ok, err := matches(doc, clause)
			if err != nil {
				return false, err
			}
			if e.Key == "$or" && ok {
				return true, nil
			}
			if e.Key == "$and" && !ok {
				return false, nil
			}
		}
		return e.Key == "$and", nil
	}

	value, _ := lookupPath(doc, e.Key)
	if ops, isOps := operatorDoc(e.Value); isOps {
		for _, op := range ops {
			ok, err := applyOperator(value, op)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	if re, ok := e.Value.(primitive.Regex); ok {
		return applyOperator(value, bson.E{Key: "$regex", Value: re})
	}
	return equalsOrContains(value, e.Value), nil
}

func applyOperator(value any, op bson.E) (bool, error) {
	switch op.Key {
	case "$eq":
		return equalsOrContains(value, op.Value), nil
	case "$ne":
		return !equalsOrContains(value, op.Value), nil
	case "$gt", "$gte", "$lt", "$lte":
		if value == nil || op.Value == nil || typeRank(value) != typeRank(op.Value) {
			return false, nil
		}
		c := compareValues(value, op.Value)
		switch op.Key {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$in":
		candidates, _ := asArray(op.Value)
		for _, c := range candidates {
			if equalsOrContains(value, c) {
				return true, nil
			}
		}
		return false, nil
	case "$regex":
		str, ok := value.(string)
		if !ok {
			return false, nil
		}
		re, err := compileRegex(op.Value)
		if err != nil {
			return false, err
		}
		return re.MatchString(str), nil
	default:
		return false, fmt.Errorf("unsupported operator %s", op.Key)
	}
}

func compileRegex(v any) (*regexp.Regexp, error) {
	switch r := v.(type) {
	case primitive.Regex:
		pattern := r.Pattern
		if strings.Contains(r.Options, "i") {
			pattern = "(?i)" + pattern
		}
		return regexp.Compile(pattern)
	case string:
		return regexp.Compile(r)
	default:
		return nil, fmt.Errorf("unsupported regex value %T", v)
	}
}

func equalsOrContains(value, want any) bool {
	if items, ok := asArray(value); ok {
		if _, wantArray := asArray(want); !wantArray {
			for _, item := range items {
				if compareValues(item, want) == 0 {
					return true
				}
			}
			return false
		}
	}
	return compareValues(value, want) == 0
}

func operatorDoc(v any) ([]bson.E, bool) {
	switch v.(type) {
	case bson.D, bson.M, map[string]interface{}:
	default:
		return nil, false
	}
	es := entries(v)
	if len(es) == 0 {
		return nil, false
	}
	for _, e := range es {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return es, true
}

// entries returns the key-value pairs of a document; maps are visited in key order.
func entries(v any) []bson.E {
	switch d := v.(type) {
	case bson.D:
		return d
	case bson.M:
		return sortedEntries(d)
	case map[string]interface{}:
		return sortedEntries(d)
	default:
		return nil
	}
}

func sortedEntries(m map[string]interface{}) []bson.E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]bson.E, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	case []string:
		out := make([]any, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	case []bson.M:
		out := make([]any, len(a))
		for i, m := range a {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func asDoc(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return d, true
	case bson.D:
		m := bson.M{}
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	default:
		return nil, false
	}
}

// lookupPath follows a dotted path through embedded documents only.
func lookupPath(doc bson.M, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		d, ok := asDoc(current)
		if !ok {
			return nil, false
		}
		current, ok = d[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// resolvePath follows a dotted path, mapping over arrays the way aggregation field paths do.
func resolvePath(doc bson.M, path string) (any, bool) {
	values := collectPath(doc, path)
	if len(values) == 0 {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		return values[0], true
	}
	if _, direct := lookupPath(doc, path); direct {
		return values[0], true
	}
	return bson.A(values), true
}

func collectPath(v any, path string) []any {
	head, rest, nested := strings.Cut(path, ".")
	if items, ok := asArray(v); ok {
		var out []any
		for _, item := range items {
			out = append(out, collectPath(item, path)...)
		}
		return out
	}
	d, ok := asDoc(v)
	if !ok {
		return nil
	}
	value, ok := d[head]
	if !ok {
		return nil
	}
	if !nested {
		return []any{value}
	}
	return collectPath(value, rest)
}

func flatten(values []any) []any {
	var out []any
	for _, v := range values {
		if items, ok := asArray(v); ok {
			out = append(out, items...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func anyEqual(a, b []any) bool {
	for _, x := range a {
		for _, y := range b {
			if compareValues(x, y) == 0 {
				return true
			}
		}
	}
	return false
}

func setPath(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(bson.M)
		if !ok {
			next = bson.M{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func isFalsy(v any) bool {
	switch b := v.(type) {
	case bool:
		return !b
	case int, int32, int64, float64:
		return toFloat(b) == 0
	default:
		return false
	}
}

// typeRank orders BSON types for comparison; all numbers share one rank.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 1
	case int, int32, int64, float64:
		return 2
	case string:
		return 3
	case bson.M, bson.D, map[string]interface{}:
		return 4
	case bson.A, []interface{}:
		return 5
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime:
		return 9
	default:
		return 10
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case primitive.ObjectID:
		return strings.Compare(x.Hex(), b.(primitive.ObjectID).Hex())
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case primitive.DateTime:
		return compareFloat(float64(x), float64(b.(primitive.DateTime)))
	case int, int32, int64, float64:
		return compareFloat(toFloat(x), toFloat(b))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		return copyDoc(x)
	case map[string]interface{}:
		return copyDoc(x)
	case bson.D:
		out := make(bson.D, len(x))
		for i, e := range x {
			out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
