package store

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory keeps every document as a BSON-normalised bson.M so that it decodes
// exactly like a document read back from MongoDB. It understands the subset
// of the query language this service issues: equality on dotted paths,
// $eq $ne $gt $gte $lt $lte $in $nin $exists $regex, and top-level $or/$and.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	counters    map[string]int64

	transactions bool
	txMu         sync.Mutex
}

type memCollection struct {
	docs  map[string]bson.M
	order []string
}

var _ Store = (*Memory)(nil)

type txKey struct{}

// NewMemory returns an empty store. With transactions enabled,
// WithTransaction restores the pre-call state when fn fails, and writes from
// outside the transaction are held until it finishes. Reads are not
// isolated: they may observe uncommitted writes.
func NewMemory(transactions bool) *Memory {
	return &Memory{
		collections:  map[string]*memCollection{},
		counters:     map[string]int64{},
		transactions: transactions,
	}
}

func (m *Memory) coll(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: map[string]bson.M{}}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Insert(ctx context.Context, collection string, doc any) error {
	return m.InsertMany(ctx, collection, []any{doc})
}

func (m *Memory) InsertMany(ctx context.Context, collection string, docs []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.writeGuard(ctx)()
	prepared := make([]bson.M, 0, len(docs))
	keys := make([]string, 0, len(docs))
	seen := map[string]bool{}
	for _, raw := range docs {
		doc, err := toDoc(raw)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", collection, err)
		}
		if id, ok := doc["_id"]; !ok || id == nil {
			doc["_id"] = primitive.NewObjectID()
		}
		key := idKey(doc["_id"])
		if seen[key] {
			return fmt.Errorf("%s: %w", collection, ErrDuplicate)
		}
		seen[key] = true
		prepared = append(prepared, doc)
		keys = append(keys, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, key := range keys {
		if _, exists := c.docs[key]; exists {
			return fmt.Errorf("%s: %w", collection, ErrDuplicate)
		}
	}
	for i, key := range keys {
		c.docs[key] = prepared[i]
		c.order = append(c.order, key)
	}
	return nil
}

func (m *Memory) FindByID(ctx context.Context, collection string, id any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	doc, ok := m.coll(collection).docs[idKey(id)]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return fromDoc(doc, out)
}

func (m *Memory) Find(ctx context.Context, collection string, filter bson.M, opts FindOptions, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	matches, err := m.matching(collection, filter)
	if err != nil {
		return err
	}
	if opts.SortBy != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			a, _ := lookup(matches[i], opts.SortBy)
			b, _ := lookup(matches[j], opts.SortBy)
			c, ok := compareValues(a, b)
			if !ok {
				return false
			}
			if opts.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if opts.Limit > 0 && int64(len(matches)) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return decodeAll(matches, out)
}

func (m *Memory) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matches, err := m.matching(collection, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

func (m *Memory) matching(collection string, filter bson.M) ([]bson.M, error) {
	f, err := toDoc(filter)
	if err != nil {
		return nil, fmt.Errorf("filter on %s: %w", collection, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.coll(collection)
	var matches []bson.M
	for _, key := range c.order {
		if doc := c.docs[key]; matchDoc(doc, f) {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

func (m *Memory) UpdateByID(ctx context.Context, collection string, id any, set bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.writeGuard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	key := idKey(id)
	doc, ok := c.docs[key]
	if !ok {
		return ErrNotFound
	}
	updated, err := applySet(doc, set)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	c.docs[key] = updated
	return nil
}

func (m *Memory) UpdateOneWhere(ctx context.Context, collection string, filter bson.M, set bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer m.writeGuard(ctx)()
	f, err := toDoc(filter)
	if err != nil {
		return 0, fmt.Errorf("filter on %s: %w", collection, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, key := range c.order {
		if !matchDoc(c.docs[key], f) {
			continue
		}
		updated, err := applySet(c.docs[key], set)
		if err != nil {
			return 0, fmt.Errorf("conditional update %s: %w", collection, err)
		}
		c.docs[key] = updated
		return 1, nil
	}
	return 0, nil
}

func (m *Memory) Upsert(ctx context.Context, collection string, id any, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.writeGuard(ctx)()
	d, err := toDoc(doc)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	idVal, err := toValue(id)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	d["_id"] = idVal

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	key := idKey(idVal)
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = d
	return nil
}

func (m *Memory) DeleteByID(ctx context.Context, collection string, id any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.writeGuard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	key := idKey(id)
	if _, ok := c.docs[key]; !ok {
		return ErrNotFound
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer m.writeGuard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions || ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// writeGuard makes a write issued outside a transaction wait for the running
// one, so a rollback cannot wipe it. Writes inside the transaction pass.
func (m *Memory) writeGuard(ctx context.Context) func() {
	if !m.transactions || ctx.Value(txKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *Memory) Transactional() bool {
	return m.transactions
}

func (m *Memory) Close(context.Context) error {
	return nil
}

type memSnapshot struct {
	collections map[string]*memCollection
	counters    map[string]int64
}

// Documents are replaced, never mutated in place, so copying the maps is
// enough to capture a consistent state.
func (m *Memory) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := memSnapshot{
		collections: make(map[string]*memCollection, len(m.collections)),
		counters:    make(map[string]int64, len(m.counters)),
	}
	for name, c := range m.collections {
		docs := make(map[string]bson.M, len(c.docs))
		for k, v := range c.docs {
			docs[k] = v
		}
		snap.collections[name] = &memCollection{docs: docs, order: append([]string(nil), c.order...)}
	}
	for k, v := range m.counters {
		snap.counters[k] = v
	}
	return snap
}

func (m *Memory) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = snap.collections
	m.counters = snap.counters
}

// ---------------- BSON helpers ----------------

func toDoc(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	if m, ok := v.(bson.M); ok && m == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func toValue(v any) (any, error) {
	doc, err := toDoc(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

func fromDoc(doc bson.M, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, out)
}

func decodeAll(docs []bson.M, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("find: out must be a pointer to a slice, got %T", out)
	}
	sliceType := rv.Elem().Type()
	result := reflect.MakeSlice(sliceType, 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(sliceType.Elem())
		if err := fromDoc(doc, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	rv.Elem().Set(result)
	return nil
}

func applySet(doc bson.M, set bson.M) (bson.M, error) {
	updated, err := toDoc(doc)
	if err != nil {
		return nil, err
	}
	for path, v := range set {
		val, err := toValue(v)
		if err != nil {
			return nil, err
		}
		setPath(updated, path, val)
	}
	return updated, nil
}

func idKey(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return "oid:" + v.Hex()
	case string:
		return "str:" + v
	default:
		return fmt.Sprintf("%T:%v", canon(v), canon(v))
	}
}

func asMap(v any) (bson.M, bool) {
	switch c := v.(type) {
	case bson.M:
		return c, true
	case map[string]any:
		return bson.M(c), true
	case bson.D:
		m := make(bson.M, len(c))
		for _, e := range c {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		child, ok := asMap(cur[part])
		if !ok {
			child = bson.M{}
		}
		cur[part] = child
		cur = child
	}
	cur[parts[len(parts)-1]] = value
}

// ---------------- matching ----------------

func matchDoc(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			if !anyMatch(doc, cond) {
				return false
			}
		case "$and":
			for _, sub := range asArray(cond) {
				f, ok := asMap(sub)
				if !ok || !matchDoc(doc, f) {
					return false
				}
			}
		default:
			val, found := lookup(doc, key)
			if !matchValue(val, found, cond) {
				return false
			}
		}
	}
	return true
}

func anyMatch(doc bson.M, cond any) bool {
	for _, sub := range asArray(cond) {
		if f, ok := asMap(sub); ok && matchDoc(doc, f) {
			return true
		}
	}
	return false
}

func asArray(v any) []any {
	switch a := v.(type) {
	case bson.A:
		return a
	case []any:
		return a
	}
	return nil
}

func operators(cond any) (bson.M, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchValue(val any, found bool, cond any) bool {
	ops, ok := operators(cond)
	if !ok {
		return equalsOrContains(val, found, cond)
	}
	for op, arg := range ops {
		if !applyOp(op, arg, val, found, ops) {
			return false
		}
	}
	return true
}

func applyOp(op string, arg, val any, found bool, ops bson.M) bool {
	switch op {
	case "$eq":
		return equalsOrContains(val, found, arg)
	case "$ne":
		return !equalsOrContains(val, found, arg)
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false
		}
		c, ok := compareValues(val, arg)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	case "$in":
		for _, item := range asArray(arg) {
			if equalsOrContains(val, found, item) {
				return true
			}
		}
		return false
	case "$nin":
		for _, item := range asArray(arg) {
			if equalsOrContains(val, found, item) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := arg.(bool)
		return found == want
	case "$regex":
		s, ok := val.(string)
		if !ok {
			return false
		}
		pattern, _ := arg.(string)
		if opts, _ := ops["$options"].(string); strings.Contains(opts, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(s)
	case "$options":
		return true
	}
	return false
}

func equalsOrContains(val any, found bool, cond any) bool {
	if !found {
		return cond == nil
	}
	if arr := asArray(val); arr != nil && asArray(cond) == nil {
		for _, item := range arr {
			if valuesEqual(item, cond) {
				return true
			}
		}
		return false
	}
	return valuesEqual(val, cond)
}

func valuesEqual(a, b any) bool {
	a, b = canon(a), canon(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// canon folds the BSON numeric and date types onto float64 and time.Time so
// values written by different code paths compare equal.
func canon(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case float64:
		return x
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC().Truncate(time.Millisecond)
	}
	return v
}

func compareValues(a, b any) (int, bool) {
	a, b = canon(a), canon(b)
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}
