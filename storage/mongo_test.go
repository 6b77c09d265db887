package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/example/taskboard/domain/task"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIDCandidates(t *testing.T) {
	hex := primitive.NewObjectID().Hex()

	got := idCandidates(hex)
	if len(got) != 2 {
		t.Fatalf("len(idCandidates(hex)) = %d, want 2", len(got))
	}
	if _, ok := got[0].(primitive.ObjectID); !ok {
		t.Errorf("first candidate = %T, want primitive.ObjectID", got[0])
	}
	if s, ok := got[1].(string); !ok || s != hex {
		t.Errorf("second candidate = %v, want raw string %s", got[1], hex)
	}

	legacy := idCandidates("legacy-id")
	if len(legacy) != 1 || legacy[0] != "legacy-id" {
		t.Errorf("idCandidates(legacy) = %v, want [legacy-id]", legacy)
	}
}

func TestTaskFilter(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := taskFilter("owner", TaskQuery{
		Done:        Bool(false),
		DueBefore:   "2026-01-15",
		CreatedFrom: from,
		TouchedFrom: from,
	})

	if _, ok := filter["userId"]; !ok {
		t.Error("filter missing owner scope")
	}
	if status, ok := filter["status"].(bson.M); !ok || status["$ne"] != string(task.StatusDone) {
		t.Errorf("status filter = %v, want $ne Done", filter["status"])
	}
	due, ok := filter["dueDate"].(bson.M)
	if !ok || due["$lt"] != "2026-01-15" || due["$type"] != "string" {
		t.Errorf("dueDate filter = %v, want string $lt bound", filter["dueDate"])
	}
	if created, ok := filter["createdAt"].(bson.M); !ok || created["$gte"] != from {
		t.Errorf("createdAt filter = %v, want $gte %v", filter["createdAt"], from)
	}
	if _, ok := filter["$expr"]; !ok {
		t.Error("filter missing touched expression")
	}
}

func TestTaskFilter_Done(t *testing.T) {
	filter := taskFilter("owner", TaskQuery{Done: Bool(true)})
	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("$or = %v, want status/completed alternatives", filter["$or"])
	}
}

func TestTaskDoc_ToTaskNormalizesLegacy(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := taskDoc{ID: "legacy-id", UserID: "owner", Title: "Old", Completed: true, CreatedAt: created}

	got := doc.toTask("")
	if got.ID != "legacy-id" || got.OwnerID != "owner" {
		t.Errorf("ids = %s/%s, want legacy-id/owner", got.ID, got.OwnerID)
	}
	if got.Status != task.StatusDone || got.Priority != task.PriorityMedium {
		t.Errorf("status/priority = %s/%s, want Done/Medium", got.Status, got.Priority)
	}
	if !got.UpdatedAt.Equal(created) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, created)
	}
}

// TestMongoStore_Integration runs against MONGODB_TEST_URI when it is set.
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set, skipping integration test")
	}
	ctx := context.Background()

	store, err := OpenMongo(ctx, Config{MongoURI: uri, MongoDB: "taskboard_test", Timeout: 5 * time.Second})
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	defer func() {
		store.db.Drop(ctx)
		store.Close(ctx)
	}()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}

	owner := primitive.NewObjectID().Hex()
	now := time.Now().UTC()
	tk := &task.Task{OwnerID: owner, Title: "Integration", Priority: task.PriorityHigh, CreatedAt: now, UpdatedAt: now}
	tk.SetStatus(task.StatusTodo)
	if err := store.InsertTask(ctx, tk); err != nil {
		t.Fatalf("InsertTask() error = %v", err)
	}

	done := task.StatusDone
	got, previous, err := store.UpdateTask(ctx, owner, tk.ID, task.Changes{Status: &done, UpdatedAt: now})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if !got.Completed {
		t.Error("UpdateTask() did not mirror completed")
	}
	if previous != task.StatusTodo {
		t.Errorf("previous status = %v, want %v", previous, task.StatusTodo)
	}

	counts, err := store.DailyCounts(ctx, owner, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("DailyCounts() error = %v", err)
	}
	if c := counts[dayKey(now)]; c.Created != 1 || c.Completed != 1 {
		t.Errorf("DailyCounts() today = %+v, want {1 1}", c)
	}

	if err := store.DeleteTask(ctx, owner, tk.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if err := store.DeleteTask(ctx, owner, tk.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteTask() error = %v, want %v", err, ErrNotFound)
	}
}
