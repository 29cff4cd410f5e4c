package sharding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/variantkit/vcfshard/vcfshard/storage"
	"github.com/variantkit/vcfshard/vcfshard/streaming"
	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// ShardWriter drains a record stream into bounded, self-contained
// shards. It is a single sequential pass: peak memory is the header plus
// at most linesPerShard buffered records.
//
// Buffering is bounded by record count, not byte size; one pathological
// record larger than a typical shard still lands in a single shard.
type ShardWriter struct {
	store storage.Handler
	run   *Run
}

func NewShardWriter(store storage.Handler, run *Run) *ShardWriter {
	return &ShardWriter{store: store, run: run}
}

// Run pulls every record from the stream and flushes a shard each time
// linesPerShard records are buffered, plus a final partial shard. Zero
// input records give zero shards, which is a valid, empty result.
//
// The returned descriptors are ordered by shard index; concatenating
// their record ranges reproduces the filtered input order exactly.
func (w *ShardWriter) Run(ctx context.Context, stream streaming.VCFStreamer) ([]ShardDescriptor, error) {
	header := stream.Header()
	maxLines := w.run.Params.LinesPerShard
	progressEvery := w.run.Params.ProgressEvery

	var (
		shards []ShardDescriptor
		buffer = make([]*vcf.Record, 0, maxLines)
		total  int
	)

	flush := func() error {
		desc, err := w.writeShard(ctx, header, buffer, len(shards))
		if err != nil {
			return err
		}
		shards = append(shards, desc)
		buffer = buffer[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return shards, fmt.Errorf("run %s: canceled %s: %w", w.run.ID, shardProgress(len(shards)), err)
		}

		rec, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return shards, fmt.Errorf("run %s: %s: %w", w.run.ID, shardProgress(len(shards)), err)
		}

		buffer = append(buffer, rec)
		total++
		if progressEvery > 0 && total%progressEvery == 0 {
			slog.Info("sharding progress", "runID", w.run.ID, "records", total, "shards", len(shards))
		}

		if len(buffer) >= maxLines {
			if err := flush(); err != nil {
				return shards, err
			}
		}
	}

	if len(buffer) > 0 {
		if err := flush(); err != nil {
			return shards, err
		}
	}

	slog.Info("sharding complete",
		"runID", w.run.ID,
		"totalRecords", total,
		"totalShards", len(shards),
		"outputDir", w.run.ShardsDir(),
	)
	return shards, nil
}

// shardProgress labels how far a failed run got, for error messages.
func shardProgress(written int) string {
	if written == 0 {
		return "before any shard"
	}
	return fmt.Sprintf("after shard %d", written-1)
}

// writeShard publishes one shard and its sidecar index. The storage
// handler guarantees no reader observes a partial object, so a shard is
// either fully present or absent.
func (w *ShardWriter) writeShard(ctx context.Context, header *vcf.Header, records []*vcf.Record, index int) (ShardDescriptor, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := vcf.Write(zw, header, records); err != nil {
		return ShardDescriptor{}, fmt.Errorf("encoding shard %d: %w", index, err)
	}
	if err := zw.Close(); err != nil {
		return ShardDescriptor{}, fmt.Errorf("compressing shard %d: %w", index, err)
	}

	shardPath := w.run.ShardPath(index)
	if err := w.store.Write(ctx, shardPath, buf.Bytes()); err != nil {
		return ShardDescriptor{}, fmt.Errorf("writing shard %d: %w", index, err)
	}

	ix := &ShardIndex{
		Shard:   shardPath,
		Records: len(records),
		Bytes:   buf.Len(),
	}
	if len(records) > 0 {
		first, last := records[0], records[len(records)-1]
		ix.FirstContig, ix.FirstPos = first.Chrom, first.Pos
		ix.LastContig, ix.LastPos = last.Chrom, last.Pos
	}
	indexPath := w.run.ShardIndexPath(index)
	data, err := ix.encode()
	if err != nil {
		return ShardDescriptor{}, err
	}
	if err := w.store.Write(ctx, indexPath, data); err != nil {
		return ShardDescriptor{}, fmt.Errorf("writing shard %d index: %w", index, err)
	}

	slog.Info("wrote shard", "runID", w.run.ID, "shard", index, "records", len(records), "bytes", buf.Len())
	return ShardDescriptor{
		Index:     index,
		Path:      shardPath,
		IndexPath: indexPath,
		Records:   len(records),
	}, nil
}
