// Package redis DocumentEvents 事件总线操作
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"agents-workflow/internal/shared/eventbus"
)

// PublishDocumentEvent 发布文档事件
func (s *Store) PublishDocumentEvent(ctx context.Context, event *eventbus.DocumentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: eventbus.StreamKey(event.Collection),
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"type":        event.Type,
			"document_id": event.DocumentID,
			"timestamp":   event.Timestamp.Format(time.RFC3339Nano),
			"data":        string(dataJSON),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	event.ID = id

	log.Printf("[Redis/EventBus] Published event: %s/%s id=%s type=%s", event.Collection, event.DocumentID, id, event.Type)
	return nil
}

// GetDocumentEvents 获取文档事件列表
func (s *Store) GetDocumentEvents(ctx context.Context, collection, fromID string, count int64) ([]*eventbus.DocumentEvent, error) {
	if fromID == "" {
		fromID = "-"
	}

	var (
		msgs []redis.XMessage
		err  error
	)
	if count > 0 {
		msgs, err = s.client.XRangeN(ctx, eventbus.StreamKey(collection), fromID, "+", count).Result()
	} else {
		msgs, err = s.client.XRange(ctx, eventbus.StreamKey(collection), fromID, "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events := make([]*eventbus.DocumentEvent, 0, len(msgs))
	for _, msg := range msgs {
		events = append(events, decodeMessage(collection, msg))
	}
	return events, nil
}

// SubscribeDocumentEvents 订阅文档事件
func (s *Store) SubscribeDocumentEvents(ctx context.Context, collection string) (<-chan *eventbus.DocumentEvent, error) {
	key := eventbus.StreamKey(collection)
	ch := make(chan *eventbus.DocumentEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() == nil {
					log.Printf("[Redis/EventBus] Event subscription error: %v", err)
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					select {
					case ch <- decodeMessage(collection, msg):
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

func decodeMessage(collection string, msg redis.XMessage) *eventbus.DocumentEvent {
	event := &eventbus.DocumentEvent{
		ID:         msg.ID,
		Collection: collection,
	}
	event.Type, _ = msg.Values["type"].(string)
	event.DocumentID, _ = msg.Values["document_id"].(string)

	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = t
		}
	}

	if dataStr, ok := msg.Values["data"].(string); ok {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataStr), &data); err == nil {
			event.Data = data
		}
	}
	return event
}
