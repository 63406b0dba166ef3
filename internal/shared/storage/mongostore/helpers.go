package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

// findOne 查找单个文档
func findOne(ctx context.Context, col *mongo.Collection, filter bson.D) (model.Document, error) {
	var raw bson.M
	if err := col.FindOne(ctx, filter).Decode(&raw); err != nil {
		return nil, wrapError(err)
	}
	return fromBSON(raw)
}

// findMany 查找多个文档
func findMany(ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]model.Document, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []model.Document{}
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		doc, err := fromBSON(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// replaceOne 按 _id 覆盖写入（不存在则插入）
func replaceOne(ctx context.Context, col *mongo.Collection, id string, doc bson.M) error {
	_, err := col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
	return wrapError(err)
}

// deleteByID 按 _id 删除
func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// toBSON id 字段映射为 _id
func toBSON(id string, doc model.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	out["_id"] = id
	return out
}

// fromBSON _id 还原为 id，并经 JSON 归一化数值与数组类型
func fromBSON(raw bson.M) (model.Document, error) {
	if id, ok := raw["_id"]; ok {
		raw["id"] = id
		delete(raw, "_id")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("mongostore: normalize document: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mongostore: normalize document: %w", err)
	}
	return doc, nil
}
