// Package client defines the read-only cluster client consumed by the
// selection and polling engines, along with an HTTP implementation and an
// exported mock for tests.
//
// Every query is a bulk call keyed by an explicit name list or a glob
// pattern; the engines never issue per-object requests. Mutating operations
// (close, delete, snapshot, restore) belong to the action layer outside
// this library.
package client

import (
	"context"
	"errors"
)

// Common errors returned by Client implementations.
var (
	// ErrNotFound is returned when a requested object (snapshot, task,
	// repository) does not exist.
	ErrNotFound = errors.New("client: not found")

	// ErrFieldMissing is returned by FieldRange when the aggregated field
	// does not exist on one or more of the queried objects.
	ErrFieldMissing = errors.New("client: field missing from mapping")
)

// Index states as reported by the cluster.
const (
	IndexOpen   = "open"
	IndexClosed = "close"
)

// Snapshot states as reported by the cluster.
const (
	SnapshotSuccess    = "SUCCESS"
	SnapshotPartial    = "PARTIAL"
	SnapshotFailed     = "FAILED"
	SnapshotInProgress = "IN_PROGRESS"
)

// IndexSettings carries the static settings the filters need.
type IndexSettings struct {
	// CreationDate is the index creation time as reported by the cluster,
	// usually in epoch milliseconds. Consumers normalize it.
	CreationDate int64

	// NumberOfShards is the configured primary shard count.
	NumberOfShards int

	// RoutingAllocation maps allocation type (require, include, exclude)
	// to attribute key to attribute value.
	RoutingAllocation map[string]map[string]string

	// LifecycleName is the attached lifecycle policy, empty when none.
	LifecycleName string
}

// IndexStats carries store statistics for one index.
type IndexStats struct {
	PrimarySizeBytes int64
	TotalSizeBytes   int64
	DocsCount        int64
}

// IndexSegments carries segment counts for one index.
type IndexSegments struct {
	// MaxShardSegments is the highest segment count on any single shard.
	MaxShardSegments int
}

// FieldRange is the min/max of a field across one index, in the unit the
// field is stored in (epoch milliseconds for date fields).
type FieldRange struct {
	Min int64
	Max int64
}

// Health is a reduced cluster health response.
type Health struct {
	Status           string
	RelocatingShards int
}

// SnapshotInfo describes one snapshot in a repository.
type SnapshotInfo struct {
	Name             string
	State            string
	StartTimeSeconds int64
	EndTimeSeconds   int64
	Indices          []string
}

// TaskInfo is the status of a long-running task.
type TaskInfo struct {
	Completed bool
	// FailureReason is set when the task completed with an error node.
	FailureReason string
}

// ShardRecovery is the recovery state of one shard of an index.
type ShardRecovery struct {
	Shard int
	Stage string
}

// RecoveryDone is the terminal shard recovery stage.
const RecoveryDone = "DONE"

// NodeInfo describes one cluster node.
type NodeInfo struct {
	Name  string
	Roles []string
}

// Client is the read-only cluster interface the engines are written
// against. Implementations must treat each method as a single bulk call.
type Client interface {
	// ListIndices returns the names of all indices matching the glob
	// pattern. An empty pattern matches everything.
	ListIndices(ctx context.Context, pattern string) ([]string, error)

	// IndexStates returns the open/close state per index.
	IndexStates(ctx context.Context, names []string) (map[string]string, error)

	// IndexSettings returns static settings per index.
	IndexSettings(ctx context.Context, names []string) (map[string]IndexSettings, error)

	// IndexStats returns store statistics per index. The cluster rejects
	// stats calls against closed indices; callers pass open indices only.
	IndexStats(ctx context.Context, names []string) (map[string]IndexStats, error)

	// IndexSegments returns segment counts per index.
	IndexSegments(ctx context.Context, names []string) (map[string]IndexSegments, error)

	// IndexAliases returns the alias memberships per index. Indices with
	// no aliases may be absent from the result.
	IndexAliases(ctx context.Context, names []string) (map[string][]string, error)

	// FieldRange runs one min/max aggregation on field across the named
	// indices and returns the per-index ranges. Returns ErrFieldMissing
	// (possibly wrapped) when the field is absent from the mapping.
	FieldRange(ctx context.Context, names []string, field string) (map[string]FieldRange, error)

	// ClusterHealth returns current cluster health.
	ClusterHealth(ctx context.Context) (Health, error)

	// ListSnapshots returns all snapshots in the repository.
	ListSnapshots(ctx context.Context, repository string) ([]SnapshotInfo, error)

	// SnapshotInfo returns the state of a single snapshot.
	SnapshotInfo(ctx context.Context, repository, snapshot string) (SnapshotInfo, error)

	// TaskStatus returns the status of a task by id.
	TaskStatus(ctx context.Context, taskID string) (TaskInfo, error)

	// IndexRecovery returns per-shard recovery states for the named
	// indices. Indices with no active or past recovery may be absent.
	IndexRecovery(ctx context.Context, names []string) (map[string][]ShardRecovery, error)

	// NodesInfo returns the nodes of the cluster keyed by node id.
	NodesInfo(ctx context.Context) (map[string]NodeInfo, error)
}
