package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestEnsureUserCreatesNewRecord(t *testing.T) {
	hookLogger, hook := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	created, err := registrar.EnsureUser(context.Background(), Profile{
		UserID:    123,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
	})
	if err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}
	if !created {
		t.Fatalf("expected created to be true for new user")
	}

	doc := coll.docFor(t, 123)

	assertFieldEquals(t, doc, "user_id", int64(123))
	assertFieldEquals(t, doc, "first_name", "Ada")
	assertFieldEquals(t, doc, "last_name", "Lovelace")
	assertFieldEquals(t, doc, "username", "ada")

	createdAt := assertTimeField(t, doc, "created_at")
	lastSeen := assertTimeField(t, doc, "last_seen_at")

	if !createdAt.Equal(lastSeen) {
		t.Fatalf("expected timestamps to match on insert, got created_at=%v last_seen_at=%v", createdAt, lastSeen)
	}

	if entry := hook.LastEntry(); entry == nil || entry.Data["event"] != "user_registered" {
		t.Fatalf("expected user_registered log entry, got %v", entry)
	}
}

func TestEnsureUserUpdatesProfileAndLastSeen(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)

	createdAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	initialLastSeen := createdAt.Add(time.Hour)

	coll.seed(t, bson.M{
		"user_id":      int64(777),
		"first_name":   "Old",
		"username":     "old_name",
		"created_at":   createdAt,
		"last_seen_at": initialLastSeen,
	})

	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))
	later := initialLastSeen.Add(24 * time.Hour)
	registrar.now = func() time.Time { return later }

	created, err := registrar.EnsureUser(context.Background(), Profile{UserID: 777, FirstName: "New", Username: "new_name"})
	if err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}
	if created {
		t.Fatalf("expected created=false for existing user")
	}

	doc := coll.docFor(t, 777)

	assertFieldEquals(t, doc, "created_at", createdAt)
	assertFieldEquals(t, doc, "first_name", "New")
	assertFieldEquals(t, doc, "username", "new_name")

	lastSeen := assertTimeField(t, doc, "last_seen_at")
	if !lastSeen.Equal(later) {
		t.Fatalf("expected last_seen_at %v, got %v", later, lastSeen)
	}
}

func TestEnsureUserValidatesInput(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	registrar := NewRegistrar(newFakeUserCollection(t), logrus.NewEntry(hookLogger))

	if _, err := registrar.EnsureUser(context.Background(), Profile{}); err == nil {
		t.Fatalf("expected error for missing user id")
	}

	var nilRegistrar *Registrar
	if _, err := nilRegistrar.EnsureUser(context.Background(), Profile{UserID: 1}); err == nil {
		t.Fatalf("expected error for nil registrar")
	}
}

func TestEnsureUserWrapsCollectionError(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	coll.err = errors.New("write conflict")

	registrar := NewRegistrar(coll, logrus.NewEntry(hookLogger))

	_, err := registrar.EnsureUser(context.Background(), Profile{UserID: 5})
	if !errors.Is(err, coll.err) {
		t.Fatalf("expected wrapped collection error, got %v", err)
	}
}

type fakeUserCollection struct {
	t    *testing.T
	docs map[int64]bson.M
	err  error
}

func newFakeUserCollection(t *testing.T) *fakeUserCollection {
	t.Helper()
	return &fakeUserCollection{
		t:    t,
		docs: make(map[int64]bson.M),
	}
}

func (f *fakeUserCollection) UpdateOne(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	filterDoc, ok := filter.(bson.M)
	if !ok {
		return nil, f.Errorf("unexpected filter type %T", filter)
	}

	userID := readInt64(f.t, filterDoc["user_id"])

	updateDoc, ok := update.(bson.M)
	if !ok {
		return nil, f.Errorf("unexpected update type %T", update)
	}

	setDoc, _ := updateDoc["$set"].(bson.M)
	setOnInsertDoc, _ := updateDoc["$setOnInsert"].(bson.M)

	upsert := len(opts) > 0 && opts[0] != nil && opts[0].Upsert != nil && *opts[0].Upsert

	doc, found := f.docs[userID]
	if !found && !upsert {
		return &mongo.UpdateResult{}, nil
	}
	if !found {
		doc = bson.M{}
		merge(doc, setOnInsertDoc)
	}

	merge(doc, setDoc)
	f.docs[userID] = doc

	result := &mongo.UpdateResult{
		MatchedCount:  1,
		ModifiedCount: 1,
	}

	if !found {
		result.MatchedCount = 0
		result.UpsertedCount = 1
		result.UpsertedID = userID
	}

	return result, nil
}

func (f *fakeUserCollection) docFor(t *testing.T, userID int64) bson.M {
	t.Helper()

	doc, ok := f.docs[userID]
	if !ok {
		t.Fatalf("no document stored for user_id=%d", userID)
	}

	return doc
}

func (f *fakeUserCollection) seed(t *testing.T, doc bson.M) {
	t.Helper()
	idVal, ok := doc["user_id"]
	if !ok {
		t.Fatalf("seed document missing user_id: %v", doc)
	}

	f.docs[readInt64(t, idVal)] = doc
}

func (f *fakeUserCollection) Errorf(format string, args ...interface{}) error {
	f.t.Helper()
	f.t.Fatalf(format, args...)
	return nil
}

func merge(dst bson.M, updates bson.M) {
	for k, v := range updates {
		dst[k] = v
	}
}

func readInt64(t *testing.T, value interface{}) int64 {
	t.Helper()

	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		t.Fatalf("expected int64-compatible value, got %T", value)
		return 0
	}
}

func assertFieldEquals(t *testing.T, doc bson.M, field string, expected interface{}) {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	if val != expected {
		t.Fatalf("expected %s=%v, got %v", field, expected, val)
	}
}

func assertTimeField(t *testing.T, doc bson.M, field string) time.Time {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	ts, ok := val.(time.Time)
	if !ok {
		t.Fatalf("expected field %s to be time.Time, got %T", field, val)
	}

	if ts.IsZero() {
		t.Fatalf("expected field %s to be non-zero", field)
	}

	return ts
}
