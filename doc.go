// Package memvec is a two-tier vector similarity lookup layer: a
// fixed-capacity in-process hot cache in front of a chunked, durable
// cold store, coordinated by a query orchestrator.
//
// A query flows through the layer as candidates → resolution → rerank:
// the ANN index proposes candidate ids, the resolver serves their
// vectors from the hot cache and fetches misses from the cold store in
// a single batched read, and the orchestrator reranks the resolved
// vectors exactly against the query before returning the top k.
//
// Basic usage with an in-memory store:
//
//	hot := cache.NewHotCache(cache.Options{MaxEntries: 10_000})
//	defer hot.Close()
//
//	ann, _ := flat.New(flat.Options{Dimension: 128, Metric: distance.MetricSquaredL2})
//	store := vectorstore.NewMapStore()
//
//	mv, _ := memvec.New(128, ann, hot, store)
//
//	results, quality, err := mv.Query(ctx, queryVec, 10, 50, 0)
//
// For a durable cold tier, open a vectorstore.ChunkStore over an S3,
// MinIO, local disk or in-memory blobstore instead of the MapStore.
package memvec
