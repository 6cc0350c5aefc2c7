package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the only component that touches redis directly. It tracks
// per-job status and progress under a namespace prefix:
//
//	<prefix>:status:<id>   -> status string
//	<prefix>:progress:<id> -> integer 0-100 as a string
//
// Absence of a key is a first-class state, never an error: a job whose
// keys expired is indistinguishable from one that never started.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func statusKey(prefix, id string) string {
	return prefix + ":status:" + id
}

func progressKey(prefix, id string) string {
	return prefix + ":progress:" + id
}

// Claim atomically creates the status key if and only if it does not
// already exist, establishing the TTL horizon for the whole tracked
// entry. It returns true when this caller won the claim.
func (s *Store) Claim(ctx context.Context, prefix, id, status string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, statusKey(prefix, id), status, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s:%s: %w", prefix, id, err)
	}
	return ok, nil
}

// SetStatus overwrites the status unconditionally. The TTL established
// by Claim is kept as-is; terminal writes neither refresh nor clear it,
// so a finished job still expires on the horizon set at claim time.
func (s *Store) SetStatus(ctx context.Context, prefix, id, status string) error {
	if err := s.rdb.Set(ctx, statusKey(prefix, id), status, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("set status %s:%s: %w", prefix, id, err)
	}
	return nil
}

// GetStatus returns the current status and whether it exists. An
// expired or never-written key yields ("", false, nil).
func (s *Store) GetStatus(ctx context.Context, prefix, id string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, statusKey(prefix, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get status %s:%s: %w", prefix, id, err)
	}
	return val, true, nil
}

// SetProgress overwrites the progress percentage, keeping any TTL.
func (s *Store) SetProgress(ctx context.Context, prefix, id string, pct int) error {
	if err := s.rdb.Set(ctx, progressKey(prefix, id), strconv.Itoa(pct), redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("set progress %s:%s: %w", prefix, id, err)
	}
	return nil
}

// ResetProgress writes progress 0 with the given TTL so the progress
// key expires together with the status key written by Claim.
func (s *Store) ResetProgress(ctx context.Context, prefix, id string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, progressKey(prefix, id), "0", ttl).Err(); err != nil {
		return fmt.Errorf("reset progress %s:%s: %w", prefix, id, err)
	}
	return nil
}

// GetProgress returns the recorded percentage, defaulting to 0 when
// the key is absent or holds garbage.
func (s *Store) GetProgress(ctx context.Context, prefix, id string) (int, error) {
	val, err := s.rdb.Get(ctx, progressKey(prefix, id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get progress %s:%s: %w", prefix, id, err)
	}
	pct, err := strconv.Atoi(val)
	if err != nil {
		return 0, nil
	}
	return pct, nil
}

// Clear removes both keys for a job. Used to release a claim whose
// dispatch never made it to the broker.
func (s *Store) Clear(ctx context.Context, prefix, id string) error {
	if err := s.rdb.Del(ctx, statusKey(prefix, id), progressKey(prefix, id)).Err(); err != nil {
		return fmt.Errorf("clear %s:%s: %w", prefix, id, err)
	}
	return nil
}

// ScanIDs walks every status key under the prefix and returns the job
// ids. This is a full-namespace SCAN; it is only acceptable because
// the tracked set per kind is expected to stay small.
func (s *Store) ScanIDs(ctx context.Context, prefix string) ([]string, error) {
	pattern := statusKey(prefix, "*")
	strip := statusKey(prefix, "")

	var ids []string
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", prefix, err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(strip):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}
