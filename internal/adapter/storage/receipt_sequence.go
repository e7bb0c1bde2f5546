package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
)

const (
	receiptSeqKeyPrefix = "receipt:seq:"
	receiptSeqTTL       = 48 * time.Hour
)

// ReceiptSequence numbers receipts PREFIX-YYYYMMDD-NNNN from a per-day
// Redis counter, so every register sharing the Redis gets one sequence.
type ReceiptSequence struct {
	client *redis.Client
	prefix string
	loc    *time.Location
	now    func() time.Time
}

func NewReceiptSequence(client *redis.Client, prefix string, loc *time.Location) *ReceiptSequence {
	if loc == nil {
		loc = time.UTC
	}
	return &ReceiptSequence{client: client, prefix: prefix, loc: loc, now: time.Now}
}

func (s *ReceiptSequence) NextReceiptNumber(ctx context.Context) (string, error) {
	day := s.now().In(s.loc).Format("20060102")
	key := receiptSeqKeyPrefix + day

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, receiptSeqTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("next receipt number: %w", err)
	}

	return fmt.Sprintf("%s-%s-%04d", s.prefix, day, incr.Val()), nil
}

// SnowflakeReceipts numbers receipts without shared state. Each register
// needs its own node id.
type SnowflakeReceipts struct {
	node   *snowflake.Node
	prefix string
}

func NewSnowflakeReceipts(nodeID int64, prefix string) (*SnowflakeReceipts, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeReceipts{node: node, prefix: prefix}, nil
}

func (s *SnowflakeReceipts) NextReceiptNumber(_ context.Context) (string, error) {
	return s.prefix + "-" + s.node.Generate().String(), nil
}
