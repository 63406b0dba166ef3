package mongostore

import (
	"context"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *Store) Put(ctx context.Context, collection, id string, doc model.Document) error {
	if err := storage.ValidateKey(collection, id); err != nil {
		return err
	}
	return replaceOne(ctx, s.col(collection), id, toBSON(id, doc))
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	return findOne(ctx, s.col(collection), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) List(ctx context.Context, collection string, opts storage.ListOptions) ([]model.Document, error) {
	filter := bson.D{}
	for k, v := range opts.Filter {
		if k == "id" {
			k = "_id"
		}
		filter = append(filter, bson.E{Key: k, Value: v})
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	return findMany(ctx, s.col(collection), filter, findOpts)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return deleteByID(ctx, s.col(collection), id)
}
