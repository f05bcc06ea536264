// Package ledger tracks which content versions have been observed for a URL
// and answers "which version was current at time T".
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/findly/models"
)

// Ledger maps (url, content hash) to the last time that content was observed.
//
// RecordSeen is an idempotent upsert. LatestAsOf returns the version with the
// greatest LastRetrieved that is not after at; found is false when the URL has
// no such version. Which version wins when two share the same LastRetrieved is
// left to the backend and callers must not depend on it.
//
// Every backend reports failures as apperr.StorageUnavailable. A failure is
// never reported as found=false.
type Ledger interface {
	RecordSeen(ctx context.Context, url, hash string, at time.Time) error
	Exists(ctx context.Context, url, hash string) (bool, error)
	LatestAsOf(ctx context.Context, url string, at time.Time) (v models.ContentVersion, found bool, err error)
}

// Precision is the timestamp resolution shared by every backend. Postgres
// TIMESTAMPTZ and the Redis scores both hold microseconds.
const Precision = time.Microsecond

// Normalize returns at in UTC at ledger precision. Backends apply it to both
// recorded and queried times so they agree at the boundary.
func Normalize(at time.Time) time.Time { return at.UTC().Truncate(Precision) }

// Memory is an in-process Ledger used for tests and single-node development.
type Memory struct {
	mu       sync.RWMutex
	versions map[string]map[string]time.Time // url -> hash -> last retrieved
}

func NewMemory() *Memory {
	return &Memory{versions: make(map[string]map[string]time.Time)}
}

func (m *Memory) RecordSeen(_ context.Context, url, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byHash, ok := m.versions[url]
	if !ok {
		byHash = make(map[string]time.Time)
		m.versions[url] = byHash
	}
	byHash[hash] = Normalize(at)
	return nil
}

func (m *Memory) Exists(_ context.Context, url, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.versions[url][hash]
	return ok, nil
}

func (m *Memory) LatestAsOf(_ context.Context, url string, at time.Time) (models.ContentVersion, bool, error) {
	at = Normalize(at)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []models.ContentVersion
	for hash, seen := range m.versions[url] {
		if seen.After(at) {
			continue
		}
		candidates = append(candidates, models.ContentVersion{URL: url, ContentHash: hash, LastRetrieved: seen})
	}
	if len(candidates) == 0 {
		return models.ContentVersion{}, false, nil
	}
	// hash order only makes the in-memory result repeatable; it is not a contract
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].LastRetrieved.Equal(candidates[j].LastRetrieved) {
			return candidates[i].LastRetrieved.After(candidates[j].LastRetrieved)
		}
		return candidates[i].ContentHash > candidates[j].ContentHash
	})
	return candidates[0], true, nil
}

// Versions returns every recorded version of url, newest first.
func (m *Memory) Versions(url string) []models.ContentVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ContentVersion, 0, len(m.versions[url]))
	for hash, seen := range m.versions[url] {
		out = append(out, models.ContentVersion{URL: url, ContentHash: hash, LastRetrieved: seen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastRetrieved.After(out[j].LastRetrieved) })
	return out
}
