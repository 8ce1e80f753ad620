package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPClient implements Client against the cluster's REST API.
//
// Only the read-side endpoints the engines need are implemented; the wire
// protocol beyond these shapes is out of scope.
type HTTPClient struct {
	base     string
	username string
	password string
	hc       *http.Client
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// Endpoint is the base URL of the cluster, e.g. "http://localhost:9200".
	Endpoint string
	// Username and Password enable basic auth when both are set.
	Username string
	Password string
	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration
}

// NewHTTPClient creates a Client talking to a live cluster.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("cluster endpoint must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		base:     strings.TrimRight(cfg.Endpoint, "/"),
		username: cfg.Username,
		password: cfg.Password,
		hc:       &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func (c *HTTPClient) ListIndices(ctx context.Context, pattern string) ([]string, error) {
	path := "/_cat/indices?format=json&h=index&expand_wildcards=open,closed"
	if pattern != "" && pattern != "*" {
		path = "/_cat/indices/" + pattern + "?format=json&h=index&expand_wildcards=open,closed"
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := c.get(ctx, path, &rows); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Index)
	}
	return names, nil
}

func (c *HTTPClient) IndexStates(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	var rows []struct {
		Index  string `json:"index"`
		Status string `json:"status"`
	}
	path := "/_cat/indices/" + joinNames(names) + "?format=json&h=index,status&expand_wildcards=open,closed"
	if err := c.get(ctx, path, &rows); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Index] = r.Status
	}
	return out, nil
}

type rawSettings struct {
	Settings struct {
		Index struct {
			CreationDate   string `json:"creation_date"`
			NumberOfShards string `json:"number_of_shards"`
			Routing        struct {
				Allocation map[string]map[string]string `json:"allocation"`
			} `json:"routing"`
			Lifecycle struct {
				Name string `json:"name"`
			} `json:"lifecycle"`
		} `json:"index"`
	} `json:"settings"`
}

func (c *HTTPClient) IndexSettings(ctx context.Context, names []string) (map[string]IndexSettings, error) {
	if len(names) == 0 {
		return map[string]IndexSettings{}, nil
	}

	var raw map[string]rawSettings
	path := "/" + joinNames(names) + "/_settings?expand_wildcards=open,closed"
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	out := make(map[string]IndexSettings, len(raw))
	for name, r := range raw {
		idx := r.Settings.Index
		created, _ := strconv.ParseInt(idx.CreationDate, 10, 64)
		shards, _ := strconv.Atoi(idx.NumberOfShards)
		out[name] = IndexSettings{
			CreationDate:      created,
			NumberOfShards:    shards,
			RoutingAllocation: idx.Routing.Allocation,
			LifecycleName:     idx.Lifecycle.Name,
		}
	}
	return out, nil
}

type rawStats struct {
	Primaries struct {
		Store struct {
			SizeInBytes int64 `json:"size_in_bytes"`
		} `json:"store"`
		Docs struct {
			Count int64 `json:"count"`
		} `json:"docs"`
	} `json:"primaries"`
	Total struct {
		Store struct {
			SizeInBytes int64 `json:"size_in_bytes"`
		} `json:"store"`
	} `json:"total"`
}

func (c *HTTPClient) IndexStats(ctx context.Context, names []string) (map[string]IndexStats, error) {
	if len(names) == 0 {
		return map[string]IndexStats{}, nil
	}

	var resp struct {
		Indices map[string]rawStats `json:"indices"`
	}
	if err := c.get(ctx, "/"+joinNames(names)+"/_stats/store,docs", &resp); err != nil {
		return nil, err
	}

	out := make(map[string]IndexStats, len(resp.Indices))
	for name, r := range resp.Indices {
		out[name] = IndexStats{
			PrimarySizeBytes: r.Primaries.Store.SizeInBytes,
			TotalSizeBytes:   r.Total.Store.SizeInBytes,
			DocsCount:        r.Primaries.Docs.Count,
		}
	}
	return out, nil
}

func (c *HTTPClient) IndexSegments(ctx context.Context, names []string) (map[string]IndexSegments, error) {
	if len(names) == 0 {
		return map[string]IndexSegments{}, nil
	}

	var resp struct {
		Indices map[string]struct {
			Shards map[string][]struct {
				NumSearchSegments int `json:"num_search_segments"`
			} `json:"shards"`
		} `json:"indices"`
	}
	if err := c.get(ctx, "/"+joinNames(names)+"/_segments", &resp); err != nil {
		return nil, err
	}

	out := make(map[string]IndexSegments, len(resp.Indices))
	for name, idx := range resp.Indices {
		max := 0
		for _, copies := range idx.Shards {
			for _, sh := range copies {
				if sh.NumSearchSegments > max {
					max = sh.NumSearchSegments
				}
			}
		}
		out[name] = IndexSegments{MaxShardSegments: max}
	}
	return out, nil
}

func (c *HTTPClient) IndexAliases(ctx context.Context, names []string) (map[string][]string, error) {
	if len(names) == 0 {
		return map[string][]string{}, nil
	}

	var resp map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	if err := c.get(ctx, "/"+joinNames(names)+"/_alias", &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(resp))
	for name, r := range resp {
		if len(r.Aliases) == 0 {
			continue
		}
		aliases := make([]string, 0, len(r.Aliases))
		for alias := range r.Aliases {
			aliases = append(aliases, alias)
		}
		out[name] = aliases
	}
	return out, nil
}

func (c *HTTPClient) FieldRange(ctx context.Context, names []string, field string) (map[string]FieldRange, error) {
	if len(names) == 0 {
		return map[string]FieldRange{}, nil
	}

	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"by_index": map[string]any{
				"terms": map[string]any{"field": "_index", "size": len(names)},
				"aggs": map[string]any{
					"min_v": map[string]any{"min": map[string]any{"field": field}},
					"max_v": map[string]any{"max": map[string]any{"field": field}},
				},
			},
		},
	}

	var resp struct {
		Aggregations struct {
			ByIndex struct {
				Buckets []struct {
					Key  string `json:"key"`
					MinV struct {
						Value *float64 `json:"value"`
					} `json:"min_v"`
					MaxV struct {
						Value *float64 `json:"value"`
					} `json:"max_v"`
				} `json:"buckets"`
			} `json:"by_index"`
		} `json:"aggregations"`
	}
	path := "/" + joinNames(names) + "/_search"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]FieldRange, len(resp.Aggregations.ByIndex.Buckets))
	for _, b := range resp.Aggregations.ByIndex.Buckets {
		if b.MinV.Value == nil || b.MaxV.Value == nil {
			continue
		}
		out[b.Key] = FieldRange{Min: int64(*b.MinV.Value), Max: int64(*b.MaxV.Value)}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("field %q: %w", field, ErrFieldMissing)
	}
	return out, nil
}

func (c *HTTPClient) ClusterHealth(ctx context.Context) (Health, error) {
	var resp struct {
		Status           string `json:"status"`
		RelocatingShards int    `json:"relocating_shards"`
	}
	if err := c.get(ctx, "/_cluster/health", &resp); err != nil {
		return Health{}, err
	}
	return Health{Status: resp.Status, RelocatingShards: resp.RelocatingShards}, nil
}

type rawSnapshot struct {
	Snapshot          string   `json:"snapshot"`
	State             string   `json:"state"`
	StartTimeInMillis int64    `json:"start_time_in_millis"`
	EndTimeInMillis   int64    `json:"end_time_in_millis"`
	Indices           []string `json:"indices"`
}

func (r rawSnapshot) toInfo() SnapshotInfo {
	return SnapshotInfo{
		Name:             r.Snapshot,
		State:            r.State,
		StartTimeSeconds: r.StartTimeInMillis / 1000,
		EndTimeSeconds:   r.EndTimeInMillis / 1000,
		Indices:          r.Indices,
	}
}

func (c *HTTPClient) ListSnapshots(ctx context.Context, repository string) ([]SnapshotInfo, error) {
	var resp struct {
		Snapshots []rawSnapshot `json:"snapshots"`
	}
	if err := c.get(ctx, "/_snapshot/"+repository+"/_all", &resp); err != nil {
		return nil, err
	}

	out := make([]SnapshotInfo, 0, len(resp.Snapshots))
	for _, s := range resp.Snapshots {
		out = append(out, s.toInfo())
	}
	return out, nil
}

func (c *HTTPClient) SnapshotInfo(ctx context.Context, repository, snapshot string) (SnapshotInfo, error) {
	var resp struct {
		Snapshots []rawSnapshot `json:"snapshots"`
	}
	if err := c.get(ctx, "/_snapshot/"+repository+"/"+snapshot, &resp); err != nil {
		return SnapshotInfo{}, err
	}
	if len(resp.Snapshots) == 0 {
		return SnapshotInfo{}, fmt.Errorf("snapshot %s/%s: %w", repository, snapshot, ErrNotFound)
	}
	return resp.Snapshots[0].toInfo(), nil
}

func (c *HTTPClient) TaskStatus(ctx context.Context, taskID string) (TaskInfo, error) {
	var resp struct {
		Completed bool `json:"completed"`
		Error     *struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := c.get(ctx, "/_tasks/"+taskID, &resp); err != nil {
		return TaskInfo{}, err
	}

	info := TaskInfo{Completed: resp.Completed}
	if resp.Error != nil {
		info.FailureReason = resp.Error.Reason
	}
	return info, nil
}

func (c *HTTPClient) IndexRecovery(ctx context.Context, names []string) (map[string][]ShardRecovery, error) {
	if len(names) == 0 {
		return map[string][]ShardRecovery{}, nil
	}

	var resp map[string]struct {
		Shards []struct {
			ID    int    `json:"id"`
			Stage string `json:"stage"`
		} `json:"shards"`
	}
	if err := c.get(ctx, "/"+joinNames(names)+"/_recovery", &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]ShardRecovery, len(resp))
	for name, r := range resp {
		shards := make([]ShardRecovery, 0, len(r.Shards))
		for _, sh := range r.Shards {
			shards = append(shards, ShardRecovery{Shard: sh.ID, Stage: sh.Stage})
		}
		out[name] = shards
	}
	return out, nil
}

func (c *HTTPClient) NodesInfo(ctx context.Context) (map[string]NodeInfo, error) {
	var resp struct {
		Nodes map[string]struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		} `json:"nodes"`
	}
	if err := c.get(ctx, "/_nodes", &resp); err != nil {
		return nil, err
	}

	out := make(map[string]NodeInfo, len(resp.Nodes))
	for id, n := range resp.Nodes {
		out[id] = NodeInfo{Name: n.Name, Roles: n.Roles}
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
