package features_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/commandgate/internal/features"
)

type memStore struct {
	mu      sync.Mutex
	state   *features.State
	saves   int
	saveErr error
}

func (m *memStore) LoadFeatures() (*features.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memStore) SaveFeatures(s *features.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	cp := *s
	m.state = &cp
	return nil
}

func TestSetDisabledPreservesOrder(t *testing.T) {
	s := features.NewSet(features.ReadConfig)
	assert.True(t, s.IsFeatureEnabled(features.ReadConfig))
	assert.False(t, s.IsFeatureEnabled(features.ReadUser))
	assert.Equal(t,
		[]features.Feature{features.UpdateConfig, features.ReadUser},
		s.Disabled([]features.Feature{features.UpdateConfig, features.ReadConfig, features.ReadUser}))
	assert.Empty(t, s.Disabled(nil))

	var zero features.Set
	assert.False(t, zero.IsFeatureEnabled(features.ReadUser))
}

func TestSetList(t *testing.T) {
	s := features.NewSet(features.UpdateConfig, features.ReadConfig, features.ReadUser)
	assert.Equal(t, []features.Feature{features.ReadConfig, features.ReadUser, features.UpdateConfig}, s.List())
	assert.Equal(t, "read:config, read:user", features.Join(s.List()[:2]))
}

func TestNewManagerSeedsEmptyStore(t *testing.T) {
	store := &memStore{}
	seed := features.State{Enabled: []features.Feature{features.ReadConfig}}

	m, err := features.NewManager(store, seed, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, m.IsFeatureEnabled(features.ReadConfig))
	require.NotNil(t, store.state)
	assert.Equal(t, []features.Feature{features.ReadConfig}, store.state.Enabled)
}

func TestNewManagerPrefersSavedState(t *testing.T) {
	store := &memStore{state: &features.State{Enabled: []features.Feature{features.ReadUser}}}
	seed := features.State{Enabled: []features.Feature{features.ReadConfig}}

	m, err := features.NewManager(store, seed, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, m.IsFeatureEnabled(features.ReadUser))
	assert.False(t, m.IsFeatureEnabled(features.ReadConfig))
	assert.Zero(t, store.saves)
}

func TestEnableDisablePersist(t *testing.T) {
	store := &memStore{}
	m, err := features.NewManager(store, features.State{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, m.EnableFeature(features.UpdateConfig))
	assert.True(t, m.IsFeatureEnabled(features.UpdateConfig))
	assert.Equal(t, []features.Feature{features.UpdateConfig}, store.state.Enabled)

	saves := store.saves
	require.NoError(t, m.EnableFeature(features.UpdateConfig))
	assert.Equal(t, saves, store.saves, "enabling twice is a no-op")

	require.NoError(t, m.DisableFeature(features.UpdateConfig))
	assert.False(t, m.IsFeatureEnabled(features.UpdateConfig))
	assert.Empty(t, store.state.Enabled)
}

func TestEnableFailureKeepsSnapshot(t *testing.T) {
	store := &memStore{}
	m, err := features.NewManager(store, features.State{}, zerolog.Nop())
	require.NoError(t, err)

	store.saveErr = errors.New("disk full")
	assert.Error(t, m.EnableFeature(features.ReadUser))
	assert.False(t, m.IsFeatureEnabled(features.ReadUser))
}

func TestSnapshotIsolation(t *testing.T) {
	m, err := features.NewManager(nil, features.State{Enabled: []features.Feature{features.ReadUser}}, zerolog.Nop())
	require.NoError(t, err)

	snap := m.Snapshot()
	require.NoError(t, m.DisableFeature(features.ReadUser))
	require.NoError(t, m.EnableFeature(features.ReadConfig))

	assert.True(t, snap.IsFeatureEnabled(features.ReadUser), "old snapshot is unaffected")
	assert.False(t, snap.IsFeatureEnabled(features.ReadConfig))
	assert.False(t, m.Snapshot().IsFeatureEnabled(features.ReadUser))
}

func TestConcurrentToggleAndRead(t *testing.T) {
	m, err := features.NewManager(nil, features.State{}, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.EnableFeature(features.ReadUser)
				_ = m.DisableFeature(features.ReadUser)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := m.Snapshot()
				_ = snap.Disabled(features.Known)
			}
		}()
	}
	wg.Wait()
}

func TestFeatureConfig(t *testing.T) {
	store := &memStore{}
	seed := features.State{Config: map[features.Feature]map[string]any{
		features.ReadUser: {"endpoint": "/users/{username}", "methods": []any{"GET"}},
	}}
	m, err := features.NewManager(store, seed, zerolog.Nop())
	require.NoError(t, err)

	cfg, ok := m.FeatureConfig(features.ReadUser)
	require.True(t, ok)
	cfg["endpoint"] = "mutated"

	var decoded features.ReadUserConfig
	require.NoError(t, m.DecodeConfig(features.ReadUser, &decoded))
	assert.Equal(t, "/users/{username}", decoded.Endpoint)
	assert.Equal(t, []string{"GET"}, decoded.Methods)

	require.NoError(t, m.UpdateFeatureConfig(features.ReadUser, map[string]any{"headers": map[string]any{"X-Key": "k"}}))
	require.NoError(t, m.DecodeConfig(features.ReadUser, &decoded))
	assert.Equal(t, "/users/{username}", decoded.Endpoint, "update merges")
	assert.Equal(t, map[string]string{"X-Key": "k"}, decoded.Headers)
	assert.Contains(t, store.state.Config[features.ReadUser], "headers")

	_, ok = m.FeatureConfig(features.UpdateConfig)
	assert.False(t, ok)
	assert.Error(t, m.DecodeConfig(features.UpdateConfig, &decoded))
}

func TestUpdateFeatureConfigRollsBack(t *testing.T) {
	store := &memStore{}
	m, err := features.NewManager(store, features.State{}, zerolog.Nop())
	require.NoError(t, err)

	store.saveErr = errors.New("read only")
	assert.Error(t, m.UpdateFeatureConfig(features.ReadUser, map[string]any{"endpoint": "/x"}))
	_, ok := m.FeatureConfig(features.ReadUser)
	assert.False(t, ok)
}
