package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return fs
}

func TestFileInsertAndFind(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("students")

	doc := Document{"student_id": "s1", "name": "Alice", "created_at": time.Now()}
	if err := col.InsertOne(ctx, doc); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	got, err := col.FindOne(ctx, Filter{"student_id": "s1"})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got.String("name") != "Alice" {
		t.Errorf("name = %q, want Alice", got.String("name"))
	}
	if _, ok := got.Time("created_at"); !ok {
		t.Error("created_at did not survive the round trip")
	}

	if _, err := col.FindOne(ctx, Filter{"student_id": "missing"}); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("FindOne(missing) err = %v, want ErrNoDocuments", err)
	}
}

func TestFileUniqueKeyViolation(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("users")

	if err := col.InsertOne(ctx, Document{"username": "alice", "email": "alice@example.com"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	err := col.InsertOne(ctx, Document{"username": "alice", "email": "other@example.com"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate username err = %v, want ErrDuplicateKey", err)
	}

	err = col.InsertOne(ctx, Document{"username": "bob", "email": "alice@example.com"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate email err = %v, want ErrDuplicateKey", err)
	}
}

func TestFileCompositeUniqueKey(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("attendance")

	if err := col.InsertOne(ctx, Document{"student_id": "s1", "date": "2026-08-26"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	// Same student, same date: rejected.
	err := col.InsertOne(ctx, Document{"student_id": "s1", "date": "2026-08-26"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("same key err = %v, want ErrDuplicateKey", err)
	}

	// Same student, different date: fine.
	if err := col.InsertOne(ctx, Document{"student_id": "s1", "date": "2026-08-27"}); err != nil {
		t.Errorf("different date err = %v", err)
	}
	// Different student, same date: fine.
	if err := col.InsertOne(ctx, Document{"student_id": "s2", "date": "2026-08-26"}); err != nil {
		t.Errorf("different student err = %v", err)
	}
}

func TestFileConcurrentInsertSingleWinner(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("attendance")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = col.InsertOne(ctx, Document{"student_id": "s1", "date": "2026-08-26", "writer": i})
		}(i)
	}
	wg.Wait()

	var wins, dups int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicateKey):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || dups != n-1 {
		t.Errorf("wins = %d, dups = %d, want 1 and %d", wins, dups, n-1)
	}

	count, err := col.CountDocuments(ctx, Filter{"student_id": "s1"})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 1 {
		t.Errorf("stored records = %d, want 1", count)
	}
}

func TestFileUpdateSetAndInc(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("attendance_links")

	if err := col.InsertOne(ctx, Document{
		"link_id": "l1", "uses": 0, "is_active": true,
		"expires_at": time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	for i := 0; i < 3; i++ {
		ok, err := col.UpdateOne(ctx, Filter{"link_id": "l1"}, Update{Inc: map[string]int64{"uses": 1}})
		if err != nil || !ok {
			t.Fatalf("UpdateOne inc: ok=%v err=%v", ok, err)
		}
	}
	ok, err := col.UpdateOne(ctx, Filter{"link_id": "l1"}, Update{Set: map[string]any{"is_active": false}})
	if err != nil || !ok {
		t.Fatalf("UpdateOne set: ok=%v err=%v", ok, err)
	}

	doc, err := col.FindOne(ctx, Filter{"link_id": "l1"})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc.Int64("uses") != 3 {
		t.Errorf("uses = %d, want 3", doc.Int64("uses"))
	}
	if doc.Bool("is_active") {
		t.Error("is_active still true after clear")
	}

	ok, err = col.UpdateOne(ctx, Filter{"link_id": "nope"}, Update{Set: map[string]any{"is_active": false}})
	if err != nil {
		t.Fatalf("UpdateOne missing: %v", err)
	}
	if ok {
		t.Error("UpdateOne matched a missing document")
	}
}

func TestFileSetNilClearsField(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("users")

	if err := col.InsertOne(ctx, Document{"username": "alice", "reset_token": "abc"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, err := col.UpdateOne(ctx, Filter{"username": "alice"}, Update{Set: map[string]any{"reset_token": nil}}); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	doc, err := col.FindOne(ctx, Filter{"username": "alice"})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc.Has("reset_token") {
		t.Error("reset_token still present after nil set")
	}
}

func TestFileTTLPurgeOnLoad(t *testing.T) {
	ctx := context.Background()
	col := openTestStore(t).Collection("attendance_sessions")

	if err := col.InsertOne(ctx, Document{
		"session_id": "dead", "expires_at": time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := col.InsertOne(ctx, Document{
		"session_id": "live", "expires_at": time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	if _, err := col.FindOne(ctx, Filter{"session_id": "dead"}); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("expired session err = %v, want ErrNoDocuments", err)
	}
	if _, err := col.FindOne(ctx, Filter{"session_id": "live"}); err != nil {
		t.Errorf("live session err = %v", err)
	}
}

func TestFileDeleteManyWithBound(t *testing.T) {
	ctx := context.Background()
	// students has no TTL field, so records survive load and DeleteMany does
	// the work itself.
	col := openTestStore(t).Collection("students")

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := col.InsertOne(ctx, Document{
			"student_id": fmt.Sprintf("s%d", i),
			"created_at": base.Add(time.Duration(i-2) * time.Hour),
		})
		if err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
	}

	removed, err := col.DeleteMany(ctx, Filter{"created_at": Lt(base.Add(-30 * time.Minute))})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	left, err := col.CountDocuments(ctx, Filter{})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if left != 3 {
		t.Errorf("remaining = %d, want 3", left)
	}
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := fs.Collection("students").InsertOne(ctx, Document{"student_id": "s1", "name": "Alice"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	fs2, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	doc, err := fs2.Collection("students").FindOne(ctx, Filter{"student_id": "s1"})
	if err != nil {
		t.Fatalf("FindOne after reopen: %v", err)
	}
	if doc.String("name") != "Alice" {
		t.Errorf("name = %q after reopen", doc.String("name"))
	}
}
