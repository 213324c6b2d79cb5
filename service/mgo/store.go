package mgo

import (
	"context"

	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollMessages    = "messages"
	CollConnections = "connections"
)

// MessageStore keeps chat messages in the messages collection.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(CollMessages)}
}

// ConnectionStore keeps connection requests; (requester, target, type) is unique.
type ConnectionStore struct {
	coll *mongo.Collection
}

func NewConnectionStore(db *mongo.Database) *ConnectionStore {
	return &ConnectionStore{coll: db.Collection(CollConnections)}
}

// EnsureIndexes creates the indexes both stores rely on. Safe to call repeatedly.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "sent_at", Value: 1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create message indexes")
	}
	_, err = db.Collection(CollConnections).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "requester_id", Value: 1}, {Key: "target_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_requester_target_type"),
		},
		{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create connection indexes")
	}
	return nil
}

// ===== messages =====

func (s *MessageStore) Save(ctx context.Context, m *model.Message) (*model.Message, error) {
	if m == nil || m.ID == "" {
		return nil, errs.ErrArgs.WrapMsg("message id required")
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, errs.WrapMsg(err, "save message", "id", m.ID)
	}
	out := *m
	return &out, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, messageID, receiverID string) (*model.Message, error) {
	var out model.Message
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "receiver_id": receiverID},
		bson.M{"$set": bson.M{"is_read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not found or access denied", "id", messageID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "mark message read", "id", messageID)
	}
	return &out, nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b string) ([]*model.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find conversation", "a", a, "b", b)
	}
	out := make([]*model.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode conversation")
	}
	return out, nil
}

// ===== connections =====

func (s *ConnectionStore) Save(ctx context.Context, c *model.Connection) (*model.Connection, error) {
	if c == nil || c.ID == "" {
		return nil, errs.ErrArgs.WrapMsg("connection id required")
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil, errs.ErrDuplicateKey.WrapMsg("connection request already exists", "requester", c.RequesterID, "target", c.TargetID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "save connection", "id", c.ID)
	}
	out := *c
	return &out, nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (*model.Connection, error) {
	var out model.Connection
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WrapMsg("connection not found", "id", id)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "get connection", "id", id)
	}
	return &out, nil
}

func (s *ConnectionStore) Exists(ctx context.Context, requesterID, targetID string, t model.ConnectionType) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"requester_id": requesterID, "target_id": targetID, "type": t},
		options.Count().SetLimit(1))
	if err != nil {
		return false, errs.WrapMsg(err, "count connections")
	}
	return n > 0, nil
}

func (s *ConnectionStore) ListByTarget(ctx context.Context, targetID string, status model.ConnectionStatus) ([]*model.Connection, error) {
	return s.list(ctx, bson.M{"target_id": targetID, "status": status})
}

func (s *ConnectionStore) ListAccepted(ctx context.Context, userID string) ([]*model.Connection, error) {
	return s.list(ctx, bson.M{
		"status": model.StatusAccepted,
		"$or":    bson.A{bson.M{"requester_id": userID}, bson.M{"target_id": userID}},
	})
}

func (s *ConnectionStore) list(ctx context.Context, filter bson.M) ([]*model.Connection, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "requested_at", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find connections")
	}
	out := make([]*model.Connection, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode connections")
	}
	return out, nil
}

var (
	_ store.MessageStore    = (*MessageStore)(nil)
	_ store.ConnectionStore = (*ConnectionStore)(nil)
)
