package client

import (
	"context"
	"path"
	"sort"
	"sync"
)

// MockIndex is the full metadata for one index held by a MockClient.
type MockIndex struct {
	State    string
	Settings IndexSettings
	Stats    IndexStats
	Segments IndexSegments
	Aliases  []string
}

// MockClient implements Client for testing. It is exported so that tests
// in other packages can use it. Every method counts its invocations and
// can be made to fail with an injected error.
type MockClient struct {
	mu          sync.RWMutex
	indices     map[string]MockIndex
	snapshots   map[string][]SnapshotInfo
	health      Health
	tasks       map[string]TaskInfo
	recovery    map[string][]ShardRecovery
	nodes       map[string]NodeInfo
	fieldRanges map[string]FieldRange
	errs        map[string]error
	calls       map[string]int
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		indices:     make(map[string]MockIndex),
		snapshots:   make(map[string][]SnapshotInfo),
		tasks:       make(map[string]TaskInfo),
		recovery:    make(map[string][]ShardRecovery),
		nodes:       make(map[string]NodeInfo),
		fieldRanges: make(map[string]FieldRange),
		errs:        make(map[string]error),
		calls:       make(map[string]int),
		health:      Health{Status: "green"},
	}
}

// AddIndex registers an index with its metadata.
func (m *MockClient) AddIndex(name string, idx MockIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx.State == "" {
		idx.State = IndexOpen
	}
	m.indices[name] = idx
}

// SetSnapshots registers the snapshot listing for a repository.
func (m *MockClient) SetSnapshots(repository string, snaps []SnapshotInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[repository] = snaps
}

// SetHealth sets the cluster health response.
func (m *MockClient) SetHealth(h Health) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = h
}

// SetTask registers a task status.
func (m *MockClient) SetTask(id string, info TaskInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = info
}

// SetRecovery registers the shard recovery states for an index.
func (m *MockClient) SetRecovery(name string, shards []ShardRecovery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery[name] = shards
}

// SetNode registers a cluster node.
func (m *MockClient) SetNode(id string, info NodeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = info
}

// SetFieldRange sets the per-index aggregation result returned by FieldRange.
func (m *MockClient) SetFieldRange(name string, r FieldRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fieldRanges[name] = r
}

// FailWith makes the named method return err on every call until reset
// with a nil err.
func (m *MockClient) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns how many times the named method has been invoked.
func (m *MockClient) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// enter records a call and returns any injected error.
func (m *MockClient) enter(method string) error {
	m.calls[method]++
	return m.errs[method]
}

func (m *MockClient) ListIndices(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListIndices"); err != nil {
		return nil, err
	}

	var names []string
	for name := range m.indices {
		if pattern == "" || pattern == "*" {
			names = append(names, name)
			continue
		}
		if ok, _ := path.Match(pattern, name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockClient) IndexStates(_ context.Context, names []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexStates"); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		if idx, ok := m.indices[name]; ok {
			out[name] = idx.State
		}
	}
	return out, nil
}

func (m *MockClient) IndexSettings(_ context.Context, names []string) (map[string]IndexSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexSettings"); err != nil {
		return nil, err
	}

	out := make(map[string]IndexSettings, len(names))
	for _, name := range names {
		if idx, ok := m.indices[name]; ok {
			out[name] = idx.Settings
		}
	}
	return out, nil
}

func (m *MockClient) IndexStats(_ context.Context, names []string) (map[string]IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexStats"); err != nil {
		return nil, err
	}

	out := make(map[string]IndexStats, len(names))
	for _, name := range names {
		idx, ok := m.indices[name]
		if !ok || idx.State == IndexClosed {
			continue
		}
		out[name] = idx.Stats
	}
	return out, nil
}

func (m *MockClient) IndexSegments(_ context.Context, names []string) (map[string]IndexSegments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexSegments"); err != nil {
		return nil, err
	}

	out := make(map[string]IndexSegments, len(names))
	for _, name := range names {
		if idx, ok := m.indices[name]; ok {
			out[name] = idx.Segments
		}
	}
	return out, nil
}

func (m *MockClient) IndexAliases(_ context.Context, names []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexAliases"); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(names))
	for _, name := range names {
		idx, ok := m.indices[name]
		if !ok || len(idx.Aliases) == 0 {
			continue
		}
		out[name] = append([]string(nil), idx.Aliases...)
	}
	return out, nil
}

func (m *MockClient) FieldRange(_ context.Context, names []string, field string) (map[string]FieldRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FieldRange"); err != nil {
		return nil, err
	}

	out := make(map[string]FieldRange, len(names))
	for _, name := range names {
		if r, ok := m.fieldRanges[name]; ok {
			out[name] = r
		}
	}
	return out, nil
}

func (m *MockClient) ClusterHealth(_ context.Context) (Health, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ClusterHealth"); err != nil {
		return Health{}, err
	}
	return m.health, nil
}

func (m *MockClient) ListSnapshots(_ context.Context, repository string) ([]SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListSnapshots"); err != nil {
		return nil, err
	}

	snaps, ok := m.snapshots[repository]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]SnapshotInfo(nil), snaps...), nil
}

func (m *MockClient) SnapshotInfo(_ context.Context, repository, snapshot string) (SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SnapshotInfo"); err != nil {
		return SnapshotInfo{}, err
	}

	for _, s := range m.snapshots[repository] {
		if s.Name == snapshot {
			return s, nil
		}
	}
	return SnapshotInfo{}, ErrNotFound
}

func (m *MockClient) TaskStatus(_ context.Context, taskID string) (TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("TaskStatus"); err != nil {
		return TaskInfo{}, err
	}

	info, ok := m.tasks[taskID]
	if !ok {
		return TaskInfo{}, ErrNotFound
	}
	return info, nil
}

func (m *MockClient) IndexRecovery(_ context.Context, names []string) (map[string][]ShardRecovery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("IndexRecovery"); err != nil {
		return nil, err
	}

	out := make(map[string][]ShardRecovery, len(names))
	for _, name := range names {
		if shards, ok := m.recovery[name]; ok {
			out[name] = append([]ShardRecovery(nil), shards...)
		}
	}
	return out, nil
}

func (m *MockClient) NodesInfo(_ context.Context) (map[string]NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NodesInfo"); err != nil {
		return nil, err
	}

	out := make(map[string]NodeInfo, len(m.nodes))
	for id, info := range m.nodes {
		out[id] = info
	}
	return out, nil
}

var _ Client = (*MockClient)(nil)
