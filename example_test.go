package memvec_test

import (
	"context"
	"fmt"
	"log"

	memvec "github.com/hupe1980/memvec"
	"github.com/hupe1980/memvec/cache"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/index/flat"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/vectorstore"
)

func Example() {
	ctx := context.Background()

	hot := cache.NewHotCache(cache.Options{MaxEntries: 100})
	defer hot.Close()

	ann, err := flat.New(flat.Options{Dimension: 2, Metric: distance.MetricSquaredL2})
	if err != nil {
		log.Fatal(err)
	}

	store := vectorstore.NewMapStore()
	for id, vec := range map[model.VectorID][]float32{
		1: {1, 1},
		2: {5, 5},
		3: {9, 9},
	} {
		if err := store.BatchPut(ctx, []model.VectorRecord{{ID: id, Vector: vec}}); err != nil {
			log.Fatal(err)
		}
		if err := ann.Insert(id, vec); err != nil {
			log.Fatal(err)
		}
	}

	mv, err := memvec.New(2, ann, hot, store)
	if err != nil {
		log.Fatal(err)
	}

	results, quality, err := mv.Query(ctx, []float32{6, 6}, 1, 3, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(results[0].ID, quality)
	// Output: vec(2) Complete
}
