// Package txnlog is the shared Transaction Log & Idempotency Store: a thin
// adapter over Redis providing per-transaction hash records
// (txn:<txn_id>), TTL'd idempotency snapshots (idem:<key>), and an
// advisory pair lock (lock:pair:<src>:<dst>). The Coordinator and the
// Recovery Worker both depend on it; Participants never touch it.
package txnlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/twopc/pkg/model"
)

const idempotencyTTL = 24 * time.Hour

// Store wraps a redis client with the schema this service needs.
type Store struct {
	rdb *redis.Client
}

// New wraps an already-configured redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping verifies the store is reachable, used by the Coordinator's
// dependency-error fast-fail path.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func txnKey(txnID string) string { return "txn:" + txnID }
func idemKey(key string) string  { return "idem:" + key }

// CreateTxn writes the initial INIT log entry for a freshly minted txn id.
func (s *Store) CreateTxn(ctx context.Context, rec *model.TxnRecord) error {
	rec.UpdatedAt = rec.CreatedAt
	return s.writeTxn(ctx, rec)
}

// UpdateTxn overwrites the stored hash for rec.TxnID, bumping UpdatedAt.
func (s *Store) UpdateTxn(ctx context.Context, rec *model.TxnRecord) error {
	rec.UpdatedAt = time.Now()
	return s.writeTxn(ctx, rec)
}

func (s *Store) writeTxn(ctx context.Context, rec *model.TxnRecord) error {
	fields := map[string]any{
		"txn_id":     rec.TxnID,
		"state":      string(rec.State),
		"src":        rec.Src,
		"dst":        rec.Dst,
		"amount":     rec.Amount,
		"error":      rec.Error,
		"created_at": formatTime(rec.CreatedAt),
		"updated_at": formatTime(rec.UpdatedAt),
	}
	if rec.PreparedAt != nil {
		fields["prepared_at"] = formatTime(*rec.PreparedAt)
	}
	if rec.CommittedAt != nil {
		fields["committed_at"] = formatTime(*rec.CommittedAt)
	}
	if rec.AbortedAt != nil {
		fields["aborted_at"] = formatTime(*rec.AbortedAt)
	}
	if rec.RecoveredAt != nil {
		fields["recovered_at"] = formatTime(*rec.RecoveredAt)
	}

	if err := s.rdb.HSet(ctx, txnKey(rec.TxnID), fields).Err(); err != nil {
		return fmt.Errorf("%w: hset txn record: %v", model.ErrDependency, err)
	}
	return nil
}

// GetTxn returns the log entry for txnID, or model.ErrNotFound if unknown.
func (s *Store) GetTxn(ctx context.Context, txnID string) (*model.TxnRecord, error) {
	data, err := s.rdb.HGetAll(ctx, txnKey(txnID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall txn record: %v", model.ErrDependency, err)
	}
	if len(data) == 0 {
		return nil, model.ErrNotFound
	}
	return parseTxnRecord(txnID, data), nil
}

// ScanPreparedAll returns every txn record currently in PREPARED_ALL state.
// Used by the Recovery Worker's sweep.
func (s *Store) ScanPreparedAll(ctx context.Context) ([]*model.TxnRecord, error) {
	return s.scanByState(ctx, model.TxnStatePreparedAll)
}

// ScanByState returns every txn record in the given state, used by the
// operator-facing GET /transactions?state= listing.
func (s *Store) ScanByState(ctx context.Context, state model.TxnState) ([]*model.TxnRecord, error) {
	return s.scanByState(ctx, state)
}

func (s *Store) scanByState(ctx context.Context, state model.TxnState) ([]*model.TxnRecord, error) {
	var records []*model.TxnRecord
	iter := s.rdb.Scan(ctx, 0, "txn:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil || len(data) == 0 {
			continue
		}
		if model.TxnState(data["state"]) != state {
			continue
		}
		txnID := key[len("txn:"):]
		records = append(records, parseTxnRecord(txnID, data))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan txn records: %v", model.ErrDependency, err)
	}
	return records, nil
}

func parseTxnRecord(txnID string, data map[string]string) *model.TxnRecord {
	rec := &model.TxnRecord{
		TxnID:  txnID,
		State:  model.TxnState(data["state"]),
		Src:    data["src"],
		Dst:    data["dst"],
		Amount: parseInt64(data["amount"]),
		Error:  data["error"],
	}
	rec.CreatedAt = parseTime(data["created_at"])
	rec.UpdatedAt = parseTime(data["updated_at"])
	rec.PreparedAt = parseTimePtr(data["prepared_at"])
	rec.CommittedAt = parseTimePtr(data["committed_at"])
	rec.AbortedAt = parseTimePtr(data["aborted_at"])
	rec.RecoveredAt = parseTimePtr(data["recovered_at"])
	return rec
}

// IdempotencyGet returns the snapshotted response for key, if any.
func (s *Store) IdempotencyGet(ctx context.Context, key string) (*model.TransferResponse, error) {
	if key == "" {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, idemKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get idempotency record: %v", model.ErrDependency, err)
	}
	var resp model.TransferResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse idempotency record: %w", err)
	}
	return &resp, nil
}

// IdempotencySet snapshots resp under key with a 24h expiry. A no-op for an
// empty key.
func (s *Store) IdempotencySet(ctx context.Context, key string, resp model.TransferResponse) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.rdb.Set(ctx, idemKey(key), raw, idempotencyTTL).Err(); err != nil {
		return fmt.Errorf("%w: set idempotency record: %v", model.ErrDependency, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
