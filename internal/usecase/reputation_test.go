package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

func TestRecalculateRecentVoteUsesFirstPeriod(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow.AddDate(0, 0, -10))

	uc := newTestReputation(store, nil, testConfig())
	score, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	data, err := uc.GetUserReputationFull(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 1.0, data.TotalBasisReputation)
	assert.Equal(t, 0.0, data.TotalVotingRewardsReputation)
	assert.True(t, data.LastCalculation.Equal(testNow))
}

func TestRecalculateOlderVoteFallsIntoCatchAll(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow.AddDate(0, 0, -40))

	uc := newTestReputation(store, nil, testConfig())
	score, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
}

func TestRecalculateVotingRewardCountedOncePerVote(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	uc := newTestReputation(store, nil, testConfig())
	data, err := uc.recalculate(context.Background(), "alice", "helpfulness")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, data.TotalVotingRewardsReputation, 1e-12)

	// re-vote replaces the ledger entry
	store.putVote(t, "alice", "bob", "helpfulness", -1, 0.5, testNow)
	data, err = uc.recalculate(context.Background(), "alice", "helpfulness")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, data.TotalVotingRewardsReputation, 1e-12)

	store.putVote(t, "alice", "carol", "helpfulness", 1, 0.5, testNow)
	data, err = uc.recalculate(context.Background(), "alice", "helpfulness")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, data.TotalVotingRewardsReputation, 1e-12)
}

func TestRecalculateIsDeterministic(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	weights := []float64{0.1, 0.7, 0.33, 0.9, 0.05, 0.61}
	voters := []string{"v1", "v2", "v3", "v4", "v5", "v6"}
	for i, voter := range voters {
		value := 1
		if i%3 == 2 {
			value = -1
		}
		store.putVote(t, voter, "bob", "helpfulness", value, weights[i], testNow.AddDate(0, -i, 0))
	}

	uc := newTestReputation(store, nil, testConfig())
	first, err := uc.recalculate(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	second, err := uc.recalculate(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(first.TotalBasisReputation), math.Float64bits(second.TotalBasisReputation))
	assert.Equal(t, math.Float64bits(first.LastKnownEffectiveReputation), math.Float64bits(second.LastKnownEffectiveReputation))
	assert.Equal(t, first, second)
}

func TestRecalculateConcurrentConflictsConverge(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)
	store.forceConflicts(schemas.Reputations, "bob:helpfulness", 2)

	recorder := newCountingRecorder()
	uc := newTestReputation(store, recorder, testConfig())

	var wg sync.WaitGroup
	scores := make([]float64, 2)
	errs := make([]error, 2)
	for i := range scores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scores[i], errs[i] = uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, scores[0], scores[1])
	assert.GreaterOrEqual(t, recorder.conflicts, 2)

	doc, err := store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	require.NoError(t, err)
	stored, err := decodeReputation(doc)
	require.NoError(t, err)
	assert.Equal(t, scores[0], stored.LastKnownEffectiveReputation)
}

func TestRecalculateExhaustedConflictsAskToTryAgain(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.forceConflicts(schemas.Reputations, "bob:helpfulness", 1000)

	recorder := newCountingRecorder()
	config := testConfig()
	uc := newTestReputation(store, recorder, config)

	_, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.ErrorIs(t, err, domain.ErrTryAgain)
	assert.Equal(t, int(config.MaxRetries)+1, store.setCount(schemas.Reputations, "bob:helpfulness"))
	assert.Equal(t, 1, recorder.results["conflict"])

	_, err = store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecalculateMissingTag(t *testing.T) {
	store := newMemStore()
	uc := newTestReputation(store, nil, testConfig())

	_, err := uc.RecalculateReputation(context.Background(), "bob", "nothing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "tag not found", err.Error())
}

func TestRecalculateRejectsMalformedKeys(t *testing.T) {
	uc := newTestReputation(newMemStore(), nil, testConfig())

	_, err := uc.RecalculateReputation(context.Background(), "bob:evil", "helpfulness")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = uc.GetUserReputation(context.Background(), "bob", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecalculateCorruptVoteLeavesPreviousRecord(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	recorder := newCountingRecorder()
	uc := newTestReputation(store, recorder, testConfig())
	_, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	before, err := store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	require.NoError(t, err)

	store.put(domain.Document{
		Collection:  schemas.Votes,
		Key:         reputation.ComposeVoteKey("carol", "bob", "helpfulness"),
		Owner:       "carol",
		Description: reputation.ComposeDescription(schemas.TermAuthor, "carol", schemas.TermTarget, "bob", schemas.TermTag, "helpfulness"),
		Data:        []byte(`{"author_key":"carol","target_key":"bob","tag_key":"helpfulness","value":7,"weight":0.5}`),
	})

	_, err = uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.ErrorIs(t, err, domain.ErrDataCorruption)
	assert.GreaterOrEqual(t, recorder.corruptions, 1)
	assert.Equal(t, 1, recorder.results["corruption"])

	after, err := store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecalculateCorruptTag(t *testing.T) {
	store := newMemStore()
	store.put(domain.Document{Collection: schemas.Tags, Key: "broken", Data: []byte(`{"name":"broken","time_periods":[]}`)})

	uc := newTestReputation(store, nil, testConfig())
	_, err := uc.RecalculateReputation(context.Background(), "bob", "broken")
	assert.ErrorIs(t, err, domain.ErrDataCorruption)
}

func TestGetUserReputationLazyRecalculation(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow.AddDate(0, 0, -10))

	config := testConfig()
	config.LazyRecalculate = true
	uc := newTestReputation(store, nil, config)

	score, err := uc.GetUserReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	_, err = store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	assert.NoError(t, err, "lazy recalculation persists the record")
}

func TestGetUserReputationWithoutLazyRecalculation(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	config := testConfig()
	config.LazyRecalculate = false
	uc := newTestReputation(store, nil, config)

	_, err := uc.GetUserReputation(context.Background(), "bob", "helpfulness")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "reputation not found", err.Error())

	_, err = uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	score, err := uc.GetUserReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

// gatedStore holds vote listings until release is closed.
type gatedStore struct {
	*memStore
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func (s *gatedStore) List(ctx context.Context, collection string, filter domain.ListFilter) (domain.ListPage, error) {
	if collection == schemas.Votes {
		s.once.Do(func() { close(s.entered) })
		select {
		case <-s.release:
		case <-ctx.Done():
			return domain.ListPage{}, ctx.Err()
		}
	}
	return s.memStore.List(ctx, collection, filter)
}

func TestLazyRecalculationSurvivesFirstCallerCancel(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	gated := &gatedStore{memStore: store, entered: make(chan struct{}), release: make(chan struct{})}
	uc := newTestReputation(gated, nil, testConfig())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := uc.GetUserReputation(first, "bob", "helpfulness")
		firstErr <- err
	}()
	<-gated.entered

	type result struct {
		score float64
		err   error
	}
	second := make(chan result, 1)
	go func() {
		score, err := uc.GetUserReputation(context.Background(), "bob", "helpfulness")
		second <- result{score, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(gated.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 1.0, res.score)

	_, err := store.Get(context.Background(), schemas.Reputations, "bob:helpfulness")
	assert.NoError(t, err)
}

func TestGetUserReputationReadsWithoutWriting(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	uc := newTestReputation(store, nil, testConfig())
	_, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	writes := store.setCount(schemas.Reputations, "bob:helpfulness")

	for range 3 {
		_, err := uc.GetUserReputationFull(context.Background(), "bob", "helpfulness")
		require.NoError(t, err)
	}
	assert.Equal(t, writes, store.setCount(schemas.Reputations, "bob:helpfulness"))
}

type stubSnapshot struct {
	mu   sync.Mutex
	data map[string]domain.ReputationData
	puts int
}

func (s *stubSnapshot) Get(ctx context.Context, user, tag string) (domain.ReputationData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[user+"/"+tag]
	return data, ok, nil
}

func (s *stubSnapshot) Put(ctx context.Context, data domain.ReputationData, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string]domain.ReputationData{}
	}
	s.data[data.UserKey+"/"+data.TagKey] = data
	s.puts++
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []reputation.Event
}

func (p *stubPublisher) Publish(ctx context.Context, event reputation.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestRecalculateFeedsSnapshotAndEvents(t *testing.T) {
	store := newMemStore()
	store.putHelpfulness(t)
	store.putVote(t, "alice", "bob", "helpfulness", 1, 0.5, testNow)

	snapshot := &stubSnapshot{}
	events := &stubPublisher{}
	uc := NewReputationUsecase(store, NewVoteLedger(store, 0), snapshot, events, nil, nil, testConfig())

	score, err := uc.RecalculateReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, "bob", events.events[0].UserKey)
	assert.Equal(t, score, events.events[0].Reputation)
	assert.Equal(t, uint64(1), events.events[0].Version)

	// the snapshot answers before the store is consulted
	cached := snapshot.data["bob/helpfulness"]
	cached.LastKnownEffectiveReputation = 42
	snapshot.data["bob/helpfulness"] = cached
	got, err := uc.GetUserReputation(context.Background(), "bob", "helpfulness")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)
}

func TestBuildVersion(t *testing.T) {
	uc := newTestReputation(newMemStore(), nil, testConfig())
	assert.Equal(t, reputation.Version, uc.BuildVersion())
}
