// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/timelinecache

package timelinecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tidefeed/tidefeed/internal/feed"
)

const timelineKeyPrefix = "timeline:"

// BadgerCache stores timelines in BadgerDB for persistence across
// restarts. Entries expire through Badger's native TTL.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache creates a BadgerDB-backed timeline cache.
func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BadgerCache{db: db, ttl: ttl}
}

// Get returns the cached timeline for a user, or ErrNotFound.
func (c *BadgerCache) Get(_ context.Context, userID string) (*feed.TimelineResult, error) {
	var result feed.TimelineResult

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(timelineKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get timeline: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Set stores the timeline for a user with the configured TTL.
func (c *BadgerCache) Set(_ context.Context, userID string, result *feed.TimelineResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(timelineKeyPrefix+userID), data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// Delete removes the cached timeline for a user.
func (c *BadgerCache) Delete(_ context.Context, userID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(timelineKeyPrefix + userID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete timeline: %w", err)
		}
		return nil
	})
}

var _ Cache = (*BadgerCache)(nil)
