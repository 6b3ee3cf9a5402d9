package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"learnstream/server/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const lessonsCollection = "lessons"

// MongoLessonStore persists lessons in the catalog's "lessons" collection.
type MongoLessonStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// OpenMongoLessonStore connects, pings and ensures the identity indexes.
func OpenMongoLessonStore(ctx context.Context, uri, database string) (*MongoLessonStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewMongoLessonStore(client, client.Database(database).Collection(lessonsCollection))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func NewMongoLessonStore(client *mongo.Client, coll *mongo.Collection) *MongoLessonStore {
	return &MongoLessonStore{client: client, coll: coll, now: time.Now}
}

func (s *MongoLessonStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// EnsureIndexes makes upload and asset ids unique among lessons that carry
// them, and indexes the legacy names used by the resolver.
func (s *MongoLessonStore) EnsureIndexes(ctx context.Context) error {
	hasString := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string"}}
	}
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mux.upload_id", Value: 1}},
			Options: options.Index().SetName("uniq_mux_upload_id").SetUnique(true).SetPartialFilterExpression(hasString("mux.upload_id")),
		},
		{
			Keys:    bson.D{{Key: "mux.asset_id", Value: 1}},
			Options: options.Index().SetName("uniq_mux_asset_id").SetUnique(true).SetPartialFilterExpression(hasString("mux.asset_id")),
		},
		{
			Keys:    bson.D{{Key: "video.upload_id", Value: 1}},
			Options: options.Index().SetName("legacy_video_upload_id").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "video.asset_id", Value: 1}},
			Options: options.Index().SetName("legacy_video_asset_id").SetSparse(true),
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create lesson indexes: %w", err)
	}
	return nil
}

func (s *MongoLessonStore) CreateLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error) {
	if _, err := s.coll.InsertOne(ctx, lesson); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Lesson{}, ErrConflict
		}
		return model.Lesson{}, fmt.Errorf("insert lesson: %w", err)
	}
	return lesson, nil
}

func (s *MongoLessonStore) GetLesson(ctx context.Context, lessonID string) (model.Lesson, error) {
	raw, err := s.coll.FindOne(ctx, lessonIDFilter(lessonID)).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Lesson{}, ErrNotFound
		}
		return model.Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	return decodeLesson(raw)
}

func (s *MongoLessonStore) FindByIdentity(ctx context.Context, id Identity) (model.Lesson, error) {
	if id.IsZero() {
		return model.Lesson{}, ErrNoIdentity
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	raw, err := s.coll.FindOne(ctx, identityFilter(id), opts).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Lesson{}, ErrNotFound
		}
		return model.Lesson{}, fmt.Errorf("find lesson by identity: %w", err)
	}
	return decodeLesson(raw)
}

func (s *MongoLessonStore) UpdateByIdentity(ctx context.Context, id Identity, upd *LessonUpdate) (model.Lesson, error) {
	if id.IsZero() {
		return model.Lesson{}, ErrNoIdentity
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)
	raw, err := s.coll.FindOneAndUpdate(ctx, identityFilter(id), bson.D{{Key: "$set", Value: upd.setDoc(s.now().UTC())}}, opts).Raw()
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return model.Lesson{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return model.Lesson{}, ErrConflict
		}
		return model.Lesson{}, fmt.Errorf("update lesson by identity: %w", err)
	}
	return decodeLesson(raw)
}

// InsertIfAbsent relies on $setOnInsert plus the unique upload id index, so
// concurrent deliveries of the same upload converge on one document.
func (s *MongoLessonStore) InsertIfAbsent(ctx context.Context, draft model.Lesson) (model.Lesson, bool, error) {
	id := Identity{UploadID: draft.Video.UploadID}
	if id.IsZero() {
		return model.Lesson{}, false, ErrNoIdentity
	}
	res, err := s.coll.UpdateOne(ctx, identityFilter(id), bson.D{{Key: "$setOnInsert", Value: draft}}, options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return model.Lesson{}, false, fmt.Errorf("insert draft lesson: %w", err)
	}
	inserted := err == nil && res.UpsertedCount == 1
	if inserted {
		return draft, true, nil
	}
	existing, err := s.FindByIdentity(ctx, id)
	if err != nil {
		return model.Lesson{}, false, err
	}
	return existing, false, nil
}

// decodeLesson reads ObjectId values as hex strings. Records written before
// this service store _id and course_id as ObjectId; $set updates leave them
// in that form.
func decodeLesson(raw bson.Raw) (model.Lesson, error) {
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.ObjectIDAsHexString()
	var l model.Lesson
	if err := dec.Decode(&l); err != nil {
		return model.Lesson{}, fmt.Errorf("decode lesson: %w", err)
	}
	return l, nil
}

// lessonIDFilter matches an id stored either as a string or, when it parses
// as one, as an ObjectId.
func lessonIDFilter(lessonID string) bson.M {
	if oid, err := bson.ObjectIDFromHex(lessonID); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{lessonID, oid}}}
	}
	return bson.M{"_id": lessonID}
}

// identityFilter ORs every non-empty id across the canonical and legacy
// field names.
func identityFilter(id Identity) bson.M {
	var or bson.A
	if id.UploadID != "" {
		or = append(or, bson.M{"mux.upload_id": id.UploadID}, bson.M{"video.upload_id": id.UploadID})
	}
	if id.AssetID != "" {
		or = append(or, bson.M{"mux.asset_id": id.AssetID}, bson.M{"video.asset_id": id.AssetID})
	}
	return bson.M{"$or": or}
}

func (u *LessonUpdate) setDoc(now time.Time) bson.D {
	var set bson.D
	add := func(key string, value any) {
		set = append(set, bson.E{Key: key, Value: value})
	}
	if u.title != nil {
		add("title", *u.title)
	}
	if u.state != nil {
		add("mux.status", *u.state)
	}
	if u.uploadID != nil {
		add("mux.upload_id", *u.uploadID)
	}
	if u.assetID != nil {
		add("mux.asset_id", *u.assetID)
	}
	if u.playbackID != nil {
		add("mux.playback_id", *u.playbackID)
	}
	if u.duration != nil {
		add("mux.duration", *u.duration)
	}
	if u.tracksSet {
		add("mux.tracks", u.tracks)
	}
	if u.visibility != nil {
		add("mux.visibility", *u.visibility)
	}
	if u.thumbnailURL != nil {
		add("mux.thumbnail_url", *u.thumbnailURL)
	}
	if u.manifestURL != nil {
		add("mux.manifest_url", *u.manifestURL)
	}
	if u.watchPageURL != nil {
		add("mux.watch_page_url", *u.watchPageURL)
	}
	if u.errorMessage != nil {
		add("mux.error_message", *u.errorMessage)
	}
	add("mux.updated_at", now)
	add("updated_at", now)
	return set
}
