// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

// Package embedding implements the fixed-memory embedding layer of the
// personalization core.
//
// The Store is a two-table cuckoo hash: each key has exactly two candidate
// slots, one per table, giving O(1) worst-case lookup with no chains. A
// slot conflict is resolved by comparing retention scores (a blend of
// access frequency, recency, and age) and relocating the losing occupant
// through a bounded work-list; collisions therefore cost evictions, never
// silent overwrites, so two live keys can never return each other's vector.
//
// The Manager owns one Store per entity type (user, content, topic,
// author), synthesizes unit-norm vectors for unseen entities, and runs the
// shared expiry sweep that keeps aggregate memory under the system ceiling.
//
// Capacity is a hard bound: insertion into a full store triggers an expiry
// sweep and is rejected when nothing can be freed.
package embedding
