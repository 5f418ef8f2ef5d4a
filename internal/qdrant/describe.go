package qdrant

import (
	qdrant "github.com/qdrant/go-client/qdrant"
)

// describeCollection extracts the interesting fields of a collection
// descriptor into a plain mapping. Every sub-config is optional on the
// wire, so each extraction is nil-guarded and missing blocks are simply
// omitted.
func describeCollection(info *qdrant.CollectionInfo) map[string]any {
	if info == nil {
		return map[string]any{}
	}
	out := map[string]any{
		"status":       info.GetStatus().String(),
		"points_count": info.GetPointsCount(),
	}
	if info.SegmentsCount > 0 {
		out["segments_count"] = info.GetSegmentsCount()
	}
	if info.IndexedVectorsCount != nil {
		out["indexed_vectors_count"] = info.GetIndexedVectorsCount()
	}

	config := map[string]any{}
	if params := describeParams(info.GetConfig().GetParams()); len(params) > 0 {
		config["params"] = params
	}
	if hnsw := describeHnsw(info.GetConfig().GetHnswConfig()); len(hnsw) > 0 {
		config["hnsw_config"] = hnsw
	}
	if opt := describeOptimizers(info.GetConfig().GetOptimizerConfig()); len(opt) > 0 {
		config["optimizer_config"] = opt
	}
	if wal := describeWal(info.GetConfig().GetWalConfig()); len(wal) > 0 {
		config["wal_config"] = wal
	}
	if len(config) > 0 {
		out["config"] = config
	}
	return out
}

func describeParams(params *qdrant.CollectionParams) map[string]any {
	if params == nil {
		return nil
	}
	out := map[string]any{
		"shard_number":    params.GetShardNumber(),
		"on_disk_payload": params.GetOnDiskPayload(),
	}
	if params.ReplicationFactor != nil {
		out["replication_factor"] = params.GetReplicationFactor()
	}
	if vp := params.GetVectorsConfig().GetParams(); vp != nil {
		out["size"] = vp.GetSize()
		out["distance"] = vp.GetDistance().String()
	}
	return out
}

func describeHnsw(cfg *qdrant.HnswConfigDiff) map[string]any {
	if cfg == nil {
		return nil
	}
	out := map[string]any{}
	if cfg.M != nil {
		out["m"] = cfg.GetM()
	}
	if cfg.EfConstruct != nil {
		out["ef_construct"] = cfg.GetEfConstruct()
	}
	return out
}

func describeOptimizers(cfg *qdrant.OptimizersConfigDiff) map[string]any {
	if cfg == nil {
		return nil
	}
	out := map[string]any{}
	if cfg.DeletedThreshold != nil {
		out["deleted_threshold"] = cfg.GetDeletedThreshold()
	}
	if cfg.IndexingThreshold != nil {
		out["indexing_threshold"] = cfg.GetIndexingThreshold()
	}
	if cfg.DefaultSegmentNumber != nil {
		out["default_segment_number"] = cfg.GetDefaultSegmentNumber()
	}
	return out
}

func describeWal(cfg *qdrant.WalConfigDiff) map[string]any {
	if cfg == nil {
		return nil
	}
	out := map[string]any{}
	if cfg.WalCapacityMb != nil {
		out["wal_capacity_mb"] = cfg.GetWalCapacityMb()
	}
	if cfg.WalSegmentsAhead != nil {
		out["wal_segments_ahead"] = cfg.GetWalSegmentsAhead()
	}
	return out
}
