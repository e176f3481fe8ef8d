package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	snapshotsCollection = "snapshots"
	projectsCollection  = "projects"
)

type snapshotDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	ProjectID   string        `bson:"project_id"`
	ProjectName string        `bson:"project_name,omitempty"`
	YAML        string        `bson:"yaml"`
	UpdatedBy   string        `bson:"updated_by"`
	UpdatedAt   time.Time     `bson:"updated_at"`
	Remark      string        `bson:"remark"`
}

func toDoc(s Snapshot) snapshotDoc {
	return snapshotDoc{
		ProjectID:   s.ProjectID,
		ProjectName: s.ProjectName,
		YAML:        s.YAML,
		UpdatedBy:   s.UpdatedBy,
		UpdatedAt:   s.UpdatedAt,
		Remark:      s.Remark,
	}
}

func (d snapshotDoc) snapshot() Snapshot {
	return Snapshot{
		ID:          d.ID.Hex(),
		ProjectID:   d.ProjectID,
		ProjectName: d.ProjectName,
		YAML:        d.YAML,
		UpdatedBy:   d.UpdatedBy,
		UpdatedAt:   d.UpdatedAt,
		Remark:      d.Remark,
	}
}

// MongoStore keeps snapshots in the "snapshots" collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore stores snapshots in the snapshots collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(snapshotsCollection)}
}

// EnsureIndexes creates the listing index on (project_id, updated_at).
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create snapshot index: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, snap Snapshot) (Snapshot, error) {
	res, err := s.coll.InsertOne(ctx, toDoc(snap))
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return Snapshot{}, fmt.Errorf("insert snapshot: unexpected id type %T", res.InsertedID)
	}
	snap.ID = id.Hex()
	return snap, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Snapshot, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return Snapshot{}, ErrNotFound
	}
	var doc snapshotDoc
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return doc.snapshot(), nil
}

func (s *MongoStore) ListByProject(ctx context.Context, projectID string) ([]Snapshot, error) {
	return s.list(ctx, bson.D{{Key: "project_id", Value: projectID}})
}

func (s *MongoStore) ListAll(ctx context.Context) ([]Snapshot, error) {
	return s.list(ctx, bson.D{})
}

func (s *MongoStore) list(ctx context.Context, filter bson.D) ([]Snapshot, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var docs []snapshotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]Snapshot, len(docs))
	for i, d := range docs {
		out[i] = d.snapshot()
	}
	return out, nil
}

type projectDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	Name      string        `bson:"name"`
	CreatedAt time.Time     `bson:"created_at"`
	Items     bson.A        `bson:"items"`
}

// MongoProjects reads the "projects" collection.
type MongoProjects struct {
	coll *mongo.Collection
}

// NewMongoProjects reads projects from the projects collection of db.
func NewMongoProjects(db *mongo.Database) *MongoProjects {
	return &MongoProjects{coll: db.Collection(projectsCollection)}
}

func (m *MongoProjects) GetProject(ctx context.Context, id string) (Project, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return Project{}, ErrProjectNotFound
	}
	var doc projectDoc
	err = m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return Project{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
		Items:     []any(doc.Items),
	}, nil
}
