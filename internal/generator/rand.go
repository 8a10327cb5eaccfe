// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"math/rand"

	"github.com/google/uuid"
)

// source wraps a seeded PRNG so every draw, including UUIDs, is reproducible.
type source struct {
	r *rand.Rand
}

func newSource(seed int64) *source {
	return &source{r: rand.New(rand.NewSource(seed))}
}

// intRange returns an int in [lo, hi].
func (s *source) intRange(lo, hi int) int {
	return lo + s.r.Intn(hi-lo+1)
}

// uniform returns a float in [lo, hi).
func (s *source) uniform(lo, hi float64) float64 {
	return lo + s.r.Float64()*(hi-lo)
}

func (s *source) chance(p float64) bool {
	return s.r.Float64() < p
}

func choice[T any](s *source, xs []T) T {
	return xs[s.r.Intn(len(xs))]
}

// weighted returns an index drawn with the given relative weights.
func (s *source) weighted(weights ...float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	x := s.r.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}

// sample returns k distinct elements of xs in draw order.
func sample[T any](s *source, xs []T, k int) []T {
	if k > len(xs) {
		k = len(xs)
	}
	idx := s.r.Perm(len(xs))[:k]
	out := make([]T, k)
	for i, j := range idx {
		out[i] = xs[j]
	}
	return out
}

func (s *source) uuid() string {
	id, err := uuid.NewRandomFromReader(s.r)
	if err != nil {
		// rand.Rand.Read never fails.
		panic(err)
	}
	return id.String()
}
