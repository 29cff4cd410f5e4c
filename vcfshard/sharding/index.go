package sharding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/variantkit/vcfshard/vcfshard/storage"
)

// ShardDescriptor identifies one persisted shard. The zero-padded index
// embedded in Path keeps lexical storage order equal to numeric order.
type ShardDescriptor struct {
	Index     int    `json:"index"`
	Path      string `json:"path"`
	IndexPath string `json:"indexPath"`
	Records   int    `json:"records"`
}

// ShardIndex is the lightweight sidecar written next to each shard so
// downstream validation can check counts and bounds without re-parsing
// the shard body.
type ShardIndex struct {
	Shard       string `json:"shard"`
	Records     int    `json:"records"`
	FirstContig string `json:"firstContig,omitempty"`
	FirstPos    uint64 `json:"firstPos,omitempty"`
	LastContig  string `json:"lastContig,omitempty"`
	LastPos     uint64 `json:"lastPos,omitempty"`
	Bytes       int    `json:"bytes"`
}

func (ix *ShardIndex) encode() ([]byte, error) {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding shard index: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadShardIndex reads and decodes the sidecar at indexPath.
func LoadShardIndex(ctx context.Context, store storage.Handler, indexPath string) (*ShardIndex, error) {
	data, err := store.Read(ctx, indexPath)
	if err != nil {
		return nil, fmt.Errorf("loading shard index %s: %w", indexPath, err)
	}
	var ix ShardIndex
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decoding shard index %s: %w", indexPath, err)
	}
	return &ix, nil
}
