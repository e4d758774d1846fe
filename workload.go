package main

import (
	"math/rand"

	"github.com/btree-query-bench/simplekv/dbms/index"
)

type WorkloadType string

const (
	PointHit  WorkloadType = "Point (hit)"
	PointMiss WorkloadType = "Point (miss)"
	Reporting WorkloadType = "Reporting (Range)"
)

// scanWidth is the key span of one Reporting scan.
const scanWidth = 100

// ExecuteWorkload runs ops lookups of one kind against idx over keys in
// [0, maxKey) and returns the number of values seen.
func ExecuteWorkload(idx index.Reader, wType WorkloadType, ops int, maxKey uint64, rng *rand.Rand) (int, error) {
	seen := 0
	for i := 0; i < ops; i++ {
		key := uint64(rng.Int63n(int64(maxKey)))

		switch wType {
		case PointHit:
			_, ok, err := idx.Get(key)
			if err != nil {
				return seen, err
			}
			if ok {
				seen++
			}
		case PointMiss:
			_, ok, err := idx.Get(maxKey + key)
			if err != nil {
				return seen, err
			}
			if ok {
				seen++
			}
		case Reporting:
			it, err := idx.Range(key, key+scanWidth)
			if err != nil {
				return seen, err
			}
			for it.Next() {
				seen++
			}
			err = it.Error()
			it.Close()
			if err != nil {
				return seen, err
			}
		}
	}
	return seen, nil
}
