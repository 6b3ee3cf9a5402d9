package store

import (
	"context"
	"fmt"
	"time"

	"learnstream/server/internal/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const webhookLogsCollection = "webhook_logs"

// MongoWebhookLog appends ignored deliveries to the "webhook_logs"
// collection next to the lessons.
type MongoWebhookLog struct {
	coll *mongo.Collection
}

func NewMongoWebhookLog(db *mongo.Database) *MongoWebhookLog {
	return &MongoWebhookLog{coll: db.Collection(webhookLogsCollection)}
}

// WebhookLog shares the lesson store's database.
func (s *MongoLessonStore) WebhookLog() *MongoWebhookLog {
	return NewMongoWebhookLog(s.coll.Database())
}

func (l *MongoWebhookLog) LogWebhook(ctx context.Context, entry model.WebhookLog) error {
	if _, err := l.coll.InsertOne(ctx, webhookLogDoc(entry)); err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

// webhookLogDoc stores a JSON payload as a document so it can be queried;
// anything else is kept as a string.
func webhookLogDoc(entry model.WebhookLog) bson.D {
	received := entry.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	doc := bson.D{
		{Key: "received_at", Value: received.UTC()},
		{Key: "event_type", Value: entry.EventType},
	}
	if entry.EventID != "" {
		doc = append(doc, bson.E{Key: "event_id", Value: entry.EventID})
	}
	if entry.Reason != "" {
		doc = append(doc, bson.E{Key: "reason", Value: entry.Reason})
	}
	var payload bson.D
	if err := bson.UnmarshalExtJSON(entry.Payload, false, &payload); err == nil {
		doc = append(doc, bson.E{Key: "payload", Value: payload})
	} else if len(entry.Payload) > 0 {
		doc = append(doc, bson.E{Key: "payload", Value: string(entry.Payload)})
	}
	return doc
}
