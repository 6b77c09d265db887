package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/taskboard/domain/task"
	"github.com/example/taskboard/domain/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	tasksCollection = "tasks"
)

// MongoStore is the MongoDB backend.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration

	indexOnce sync.Once
	indexErr  error
}

var _ Store = (*MongoStore)(nil)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Name         string             `bson:"name"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// taskDoc mirrors the stored shape. _id and userId are ObjectIDs for every
// record written by this service; older records may hold plain strings.
type taskDoc struct {
	ID         any        `bson:"_id,omitempty"`
	UserID     any        `bson:"userId"`
	Title      string     `bson:"title"`
	Status     string     `bson:"status,omitempty"`
	Completed  bool       `bson:"completed"`
	Priority   string     `bson:"priority,omitempty"`
	DueDate    *string    `bson:"dueDate"`
	ReminderAt *string    `bson:"reminderAt"`
	CreatedAt  time.Time  `bson:"createdAt"`
	UpdatedAt  *time.Time `bson:"updatedAt,omitempty"`
}

// OpenMongo connects to cfg.MongoURI and selects cfg.MongoDB.
func OpenMongo(ctx context.Context, cfg Config) (*MongoStore, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("mongo connection string is required")
	}
	dbName := cfg.MongoDB
	if dbName == "" {
		dbName = "test"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client:  client,
		db:      client.Database(dbName),
		timeout: cfg.Timeout,
	}, nil
}

// Driver returns "mongo".
func (s *MongoStore) Driver() string {
	return DriverMongo
}

// EnsureIndexes creates the unique email index and the owner/created index.
// CreateOne is a no-op for an index that already exists with the same keys.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	s.indexOnce.Do(func() {
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()

		if _, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}); err != nil {
			s.indexErr = fmt.Errorf("failed to create users.email index: %w", err)
			return
		}
		if _, err := s.db.Collection(tasksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		}); err != nil {
			s.indexErr = fmt.Errorf("failed to create tasks.userId index: %w", err)
		}
	})
	return s.indexErr
}

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CreateUser inserts u and sets its id.
func (s *MongoStore) CreateUser(ctx context.Context, u *user.User) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	users := s.db.Collection(usersCollection)
	count, err := users.CountDocuments(ctx, bson.M{"email": u.Email}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check email existence: %w", err)
	}
	if count > 0 {
		return ErrDuplicateEmail
	}

	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
	}
	if _, err := users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

// FindUserByEmail finds a user by normalized email.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindUserByID finds a user by hex ObjectID. Malformed ids are not found.
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var doc userDoc
	if err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user.User{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Name:         doc.Name,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// InsertTask saves t with a new ObjectID and sets t.ID.
func (s *MongoStore) InsertTask(ctx context.Context, t *task.Task) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	oid := primitive.NewObjectID()
	updatedAt := t.UpdatedAt
	doc := taskDoc{
		ID:         oid,
		UserID:     ownerValue(t.OwnerID),
		Title:      t.Title,
		Status:     string(t.Status),
		Completed:  t.Completed,
		Priority:   string(t.Priority),
		DueDate:    t.DueDate,
		ReminderAt: t.ReminderAt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  &updatedAt,
	}
	if _, err := s.db.Collection(tasksCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	t.ID = oid.Hex()
	return nil
}

// ListTasks returns the owner's newest tasks.
func (s *MongoStore) ListTasks(ctx context.Context, ownerID string, limit int) ([]task.Task, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(tasksCollection).Find(ctx, ownerFilter(ownerID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return decodeTasks(ctx, cursor)
}

// UpdateTask applies changes to the owner's task. Candidate ids are tried in
// order and the first match wins.
//
// TODO: drop the raw-string candidate once legacy task ids are backfilled to ObjectIDs.
func (s *MongoStore) UpdateTask(ctx context.Context, ownerID, taskID string, changes task.Changes) (*task.Task, task.Status, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.M{"updatedAt": changes.UpdatedAt}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Status != nil {
		set["status"] = string(*changes.Status)
		set["completed"] = *changes.Status == task.StatusDone
	}
	if changes.Priority != nil {
		set["priority"] = string(*changes.Priority)
	}
	if changes.DueDate.Set {
		set["dueDate"] = changes.DueDate.Value
	}
	if changes.ReminderAt.Set {
		set["reminderAt"] = changes.ReminderAt.Value
	}

	tasks := s.db.Collection(tasksCollection)
	// The pre-image gives the previous status atomically. The returned task is
	// that pre-image with the same changes applied.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	for _, id := range idCandidates(taskID) {
		filter := ownerFilter(ownerID)
		filter["_id"] = id

		var doc taskDoc
		err := tasks.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to update task: %w", err)
		}
		before := doc.toTask(ownerID)
		after := before
		changes.Apply(&after)
		return &after, before.Status, nil
	}
	return nil, "", ErrNotFound
}

// DeleteTask removes the owner's task, trying the same id candidates as UpdateTask.
func (s *MongoStore) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	tasks := s.db.Collection(tasksCollection)
	for _, id := range idCandidates(taskID) {
		filter := ownerFilter(ownerID)
		filter["_id"] = id

		result, err := tasks.DeleteOne(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if result.DeletedCount > 0 {
			return nil
		}
	}
	return ErrNotFound
}

// CountTasks counts the owner's tasks matching q.
func (s *MongoStore) CountTasks(ctx context.Context, ownerID string, q TaskQuery) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.db.Collection(tasksCollection).CountDocuments(ctx, taskFilter(ownerID, q))
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// FindTasks returns the owner's tasks matching q. Sorting by touched time
// needs a computed field, so the query runs as an aggregation.
func (s *MongoStore) FindTasks(ctx context.Context, ownerID string, q TaskQuery) ([]task.Task, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var sort bson.D
	switch q.Sort {
	case SortDueAsc:
		sort = bson.D{{Key: "dueDate", Value: 1}, {Key: "createdAt", Value: 1}}
	case SortTouchedDesc:
		sort = bson.D{{Key: "touchedAt", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		sort = bson.D{{Key: "createdAt", Value: -1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: taskFilter(ownerID, q)}},
		{{Key: "$addFields", Value: bson.M{"touchedAt": touchedExpr}}},
		{{Key: "$sort", Value: sort}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"touchedAt": 0}}})

	cursor, err := s.db.Collection(tasksCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return decodeTasks(ctx, cursor)
}

// DailyCounts groups the owner's created and completed tasks per UTC day since from.
func (s *MongoStore) DailyCounts(ctx context.Context, ownerID string, from time.Time) (map[string]DayCount, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	counts := make(map[string]DayCount)

	created, err := s.groupByDay(ctx, taskFilter(ownerID, TaskQuery{CreatedFrom: from}), "$createdAt")
	if err != nil {
		return nil, fmt.Errorf("failed to group created tasks: %w", err)
	}
	for day, n := range created {
		c := counts[day]
		c.Created = n
		counts[day] = c
	}

	completed, err := s.groupByDay(ctx, taskFilter(ownerID, TaskQuery{Done: Bool(true), TouchedFrom: from}), touchedExpr)
	if err != nil {
		return nil, fmt.Errorf("failed to group completed tasks: %w", err)
	}
	for day, n := range completed {
		c := counts[day]
		c.Completed = n
		counts[day] = c
	}
	return counts, nil
}

func (s *MongoStore) groupByDay(ctx context.Context, match bson.M, date any) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     date,
				"timezone": "UTC",
			}},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.db.Collection(tasksCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Day   string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Day] = r.Count
	}
	return out, nil
}

var touchedExpr = bson.M{"$ifNull": bson.A{"$updatedAt", "$createdAt"}}

// idCandidates lists the encodings a task id may be stored under, canonical first.
func idCandidates(id string) []any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return []any{oid, id}
	}
	return []any{id}
}

// ownerValue is the canonical encoding written for an owner reference.
func ownerValue(ownerID string) any {
	if oid, err := primitive.ObjectIDFromHex(ownerID); err == nil {
		return oid
	}
	return ownerID
}

func ownerFilter(ownerID string) bson.M {
	values := bson.A{ownerID}
	if oid, err := primitive.ObjectIDFromHex(ownerID); err == nil {
		values = bson.A{oid, ownerID}
	}
	return bson.M{"userId": bson.M{"$in": values}}
}

func taskFilter(ownerID string, q TaskQuery) bson.M {
	filter := ownerFilter(ownerID)

	if q.Done != nil {
		if *q.Done {
			filter["$or"] = bson.A{
				bson.M{"status": string(task.StatusDone)},
				bson.M{"completed": true},
			}
		} else {
			filter["status"] = bson.M{"$ne": string(task.StatusDone)}
			filter["completed"] = bson.M{"$ne": true}
		}
	}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}
	if q.Priority != "" {
		filter["priority"] = string(q.Priority)
	}

	if q.hasDueBounds() {
		due := bson.M{"$type": "string", "$ne": ""}
		if q.DueFrom != "" {
			due["$gte"] = q.DueFrom
		}
		if q.DueTo != "" {
			due["$lte"] = q.DueTo
		}
		if q.DueBefore != "" {
			due["$lt"] = q.DueBefore
		}
		filter["dueDate"] = due
	}

	if !q.CreatedFrom.IsZero() || !q.CreatedTo.IsZero() {
		created := bson.M{}
		if !q.CreatedFrom.IsZero() {
			created["$gte"] = q.CreatedFrom
		}
		if !q.CreatedTo.IsZero() {
			created["$lt"] = q.CreatedTo
		}
		filter["createdAt"] = created
	}

	var exprs bson.A
	if !q.TouchedFrom.IsZero() {
		exprs = append(exprs, bson.M{"$gte": bson.A{touchedExpr, q.TouchedFrom}})
	}
	if !q.TouchedTo.IsZero() {
		exprs = append(exprs, bson.M{"$lt": bson.A{touchedExpr, q.TouchedTo}})
	}
	if len(exprs) > 0 {
		filter["$expr"] = bson.M{"$and": exprs}
	}
	return filter
}

func decodeTasks(ctx context.Context, cursor *mongo.Cursor) ([]task.Task, error) {
	defer cursor.Close(ctx)

	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	tasks := make([]task.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.toTask(""))
	}
	return tasks, nil
}

func (d taskDoc) toTask(ownerID string) task.Task {
	if ownerID == "" {
		ownerID = idString(d.UserID)
	}
	t := task.Task{
		ID:         idString(d.ID),
		OwnerID:    ownerID,
		Title:      d.Title,
		Status:     task.Status(d.Status),
		Completed:  d.Completed,
		Priority:   task.Priority(d.Priority),
		DueDate:    d.DueDate,
		ReminderAt: d.ReminderAt,
		CreatedAt:  d.CreatedAt.UTC(),
	}
	if d.UpdatedAt != nil {
		t.UpdatedAt = d.UpdatedAt.UTC()
	}
	t.Normalize()
	return t
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
