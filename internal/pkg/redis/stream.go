package redis

import (
	"context"
	"errors"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// StreamWriter appends entries to a stream. *StreamClient implements it.
type StreamWriter interface {
	XAdd(ctx context.Context, args XAddArgs) (string, error)
}

type StreamClient struct {
	rdb *redisv9.Client
}

func NewStreamClient(rdb *redisv9.Client) *StreamClient {
	return &StreamClient{rdb: rdb}
}

type XAddArgs struct {
	Stream string
	MaxLen int64 // approximate
	Values map[string]interface{}
}

// XAdd appends an entry. Errors are classified with Classify.
func (s *StreamClient) XAdd(ctx context.Context, args XAddArgs) (string, error) {
	options := &redisv9.XAddArgs{
		Stream: args.Stream,
		MaxLen: args.MaxLen,
		Approx: args.MaxLen > 0,
		Values: args.Values,
	}
	id, err := s.rdb.XAdd(ctx, options).Result()
	return id, Classify(err)
}

// Entry is one stream message
type Entry struct {
	ID     string
	Values map[string]interface{}
}

// Read returns entries after lastID, waiting up to block for new ones.
// Use "0" to read from the start and "$" for only new entries.
// A block timeout without entries returns an empty slice.
func (s *StreamClient) Read(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]Entry, error) {
	res, err := s.rdb.XRead(ctx, &redisv9.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, st := range res {
		for _, msg := range st.Messages {
			out = append(out, Entry{ID: msg.ID, Values: msg.Values})
		}
	}
	return out, nil
}

// Tail returns the last count entries, oldest first
func (s *StreamClient) Tail(ctx context.Context, stream string, count int64) ([]Entry, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(msgs))
	for i, msg := range msgs {
		out[len(msgs)-1-i] = Entry{ID: msg.ID, Values: msg.Values}
	}
	return out, nil
}
