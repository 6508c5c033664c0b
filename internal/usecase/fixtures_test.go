package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory DocumentStore with the same versioning rules as
// the database repository.
type memStore struct {
	mu   sync.Mutex
	docs map[string]map[string]domain.Document
	now  func() time.Time

	// forced conflicts per "collection/key", consumed by Set
	conflicts map[string]int
	sets      map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		docs:      map[string]map[string]domain.Document{},
		now:       func() time.Time { return testNow },
		conflicts: map[string]int{},
		sets:      map[string]int{},
	}
}

func (m *memStore) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[collection][key]
	if !ok {
		return domain.Document{}, domain.NotFoundError{Resource: collection}
	}
	return doc, nil
}

func (m *memStore) List(ctx context.Context, collection string, filter domain.ListFilter) (domain.ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.docs[collection]))
	for key := range m.docs[collection] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var page domain.ListPage
	for _, key := range keys {
		doc := m.docs[collection][key]
		if key <= filter.After && filter.After != "" {
			continue
		}
		if filter.Key != "" && key != filter.Key {
			continue
		}
		if !strings.HasPrefix(key, filter.KeyPrefix) {
			continue
		}
		if filter.Owner != "" && doc.Owner != filter.Owner {
			continue
		}
		matched := true
		for _, term := range filter.Description {
			if !strings.Contains(doc.Description, term) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if filter.Limit > 0 && len(page.Items) == filter.Limit {
			page.Next = page.Items[len(page.Items)-1].Key
			break
		}
		page.Items = append(page.Items, doc)
	}
	return page, nil
}

func (m *memStore) Set(ctx context.Context, doc domain.Document) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := doc.Collection + "/" + doc.Key
	m.sets[id]++
	if m.conflicts[id] > 0 {
		m.conflicts[id]--
		return domain.Document{}, domain.ConflictError{Collection: doc.Collection, Key: doc.Key}
	}

	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = map[string]domain.Document{}
	}
	current, exists := m.docs[doc.Collection][doc.Key]
	now := m.now()

	switch {
	case doc.Version == 0 && exists, doc.Version != 0 && !exists, exists && current.Version != doc.Version:
		return domain.Document{}, domain.ConflictError{Collection: doc.Collection, Key: doc.Key}
	}

	if exists {
		doc.CreatedAt = current.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Version++
	m.docs[doc.Collection][doc.Key] = doc
	return doc, nil
}

func (m *memStore) Delete(ctx context.Context, collection, key string, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.docs[collection][key]
	if !ok {
		return domain.NotFoundError{Resource: collection}
	}
	if current.Version != version {
		return domain.ConflictError{Collection: collection, Key: key}
	}
	delete(m.docs[collection], key)
	return nil
}

// put stores doc verbatim, bypassing versioning.
func (m *memStore) put(doc domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = map[string]domain.Document{}
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	m.docs[doc.Collection][doc.Key] = doc
}

func (m *memStore) forceConflicts(collection, key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[collection+"/"+key] = n
}

func (m *memStore) setCount(collection, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[collection+"/"+key]
}

func (m *memStore) putTag(t *testing.T, key, name string, reward float64, periods ...domain.TimePeriod) {
	t.Helper()
	data, err := json.Marshal(domain.Tag{Name: name, VoteReward: reward, TimePeriods: periods})
	require.NoError(t, err)
	m.put(domain.Document{
		Collection:  schemas.Tags,
		Key:         key,
		Owner:       "admin",
		Description: reputation.ComposeDescription(schemas.TermName, strings.ToLower(name)),
		Data:        data,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	})
}

func (m *memStore) putVote(t *testing.T, author, target, tag string, value int, weight float64, castAt time.Time) {
	t.Helper()
	data, err := json.Marshal(domain.Vote{AuthorKey: author, TargetKey: target, TagKey: tag, Value: value, Weight: weight})
	require.NoError(t, err)
	m.put(domain.Document{
		Collection: schemas.Votes,
		Key:        reputation.ComposeVoteKey(author, target, tag),
		Owner:      author,
		Description: reputation.ComposeDescription(
			schemas.TermAuthor, author,
			schemas.TermTarget, target,
			schemas.TermTag, tag,
		),
		Data:      data,
		CreatedAt: castAt,
		UpdatedAt: castAt,
	})
}

// helpfulness is the two-period tag used throughout the scenarios.
func (m *memStore) putHelpfulness(t *testing.T) {
	m.putTag(t, "helpfulness", "helpfulness", 0.1,
		domain.TimePeriod{Months: 1, Multiplier: 2.0},
		domain.TimePeriod{Months: 999, Multiplier: 1.0},
	)
}

type countingRecorder struct {
	mu          sync.Mutex
	results     map[string]int
	conflicts   int
	rejected    int
	hookFailed  int
	corruptions int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: map[string]int{}}
}

func (r *countingRecorder) RecalculationDone(result string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func (r *countingRecorder) ConflictRetried(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *countingRecorder) ValidationRejected(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected++
}

func (r *countingRecorder) HookFailed(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hookFailed++
}

func (r *countingRecorder) CorruptionDetected(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corruptions++
}

func testConfig() domain.Config {
	config := domain.DefaultConfig()
	config.RetryInitialInterval = time.Millisecond
	config.RetryMaxInterval = 2 * time.Millisecond
	return config
}

func newTestReputation(store DocumentStore, recorder Recorder, config domain.Config) *ReputationUsecase {
	uc := NewReputationUsecase(store, NewVoteLedger(store, 2), nil, nil, recorder, nil, config)
	uc.clock = func() time.Time { return testNow }
	return uc
}

func voteJSON(author, target, tag string, value int, weight float64) []byte {
	data, _ := json.Marshal(map[string]any{
		"author_key": author,
		"target_key": target,
		"tag_key":    tag,
		"value":      value,
		"weight":     weight,
	})
	return data
}
