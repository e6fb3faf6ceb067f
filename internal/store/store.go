// Package store provides the generic document collection both backends
// implement: an ordered-by-insertion set of schema-less records keyed by
// application-chosen fields. The backend is picked once at composition
// time; nothing in here probes for capabilities at runtime.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDocuments is returned by FindOne when nothing matches.
	ErrNoDocuments = errors.New("store: no documents in result")
	// ErrDuplicateKey is returned by InsertOne when a unique constraint
	// would be violated. Callers rely on this for insert-if-absent.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Document is a schema-less record.
type Document map[string]any

// Filter matches documents by field equality. A value may also be a Gt or
// Lt bound produced by the helpers below.
type Filter map[string]any

type gtBound struct{ v any }
type ltBound struct{ v any }

// Gt matches documents whose field is strictly greater than v.
func Gt(v any) any { return gtBound{v} }

// Lt matches documents whose field is strictly less than v.
func Lt(v any) any { return ltBound{v} }

// Update describes a partial modification. Set overwrites fields (a nil
// value clears the field to null); Inc adds to numeric fields atomically.
type Update struct {
	Set map[string]any
	Inc map[string]int64
}

// Collection is the five-operation surface the services consume, plus
// DeleteMany for the expiry sweep.
type Collection interface {
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter) ([]Document, error)
	InsertOne(ctx context.Context, doc Document) error
	UpdateOne(ctx context.Context, filter Filter, update Update) (bool, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)
}

// Store hands out named collections and owns the backing resources.
type Store interface {
	Collection(name string) Collection
	Close() error
}

// Spec declares a collection's unique keys and optional TTL field. The
// postgres backend enforces these through migrations; the file backend
// enforces them directly.
type Spec struct {
	Name       string
	UniqueKeys [][]string
	TTLField   string
}

// Collection names and their constraints, shared by both backends and the
// migration files.
var Specs = []Spec{
	{Name: "users", UniqueKeys: [][]string{{"username"}, {"email"}}},
	{Name: "students", UniqueKeys: [][]string{{"student_id"}}},
	{Name: "attendance", UniqueKeys: [][]string{{"student_id", "date"}}},
	{Name: "attendance_sessions", UniqueKeys: [][]string{{"session_id"}}, TTLField: "expires_at"},
	{Name: "attendance_links", UniqueKeys: [][]string{{"link_id"}}, TTLField: "expires_at"},
}

// String reads a string field, tolerating absent or null values.
func (d Document) String(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Bool reads a boolean field.
func (d Document) Bool(key string) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return false
}

// Int64 reads a numeric field. JSON round-trips store numbers as float64.
func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Time reads a timestamp field. Values survive JSON round-trips as RFC3339
// strings, so both representations are accepted.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case time.Time:
		return v, true
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Has reports whether the field is present and non-null.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}
