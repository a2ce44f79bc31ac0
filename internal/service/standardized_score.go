package service

import (
	"sort"
	"sync"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
)

// ScoreThreshold maps a minimum raw percentage onto an external scale.
type ScoreThreshold struct {
	MinPercentage   float64
	Percentile      int
	EquivalentRange string
}

const belowBenchmarkRange = "below benchmark"

// ScaleRegistry holds one descending threshold table per exam type.
type ScaleRegistry struct {
	mu     sync.RWMutex
	tables map[string][]ScoreThreshold
}

// NewScaleRegistry returns a registry preloaded with the built-in exam scales.
func NewScaleRegistry() *ScaleRegistry {
	r := &ScaleRegistry{tables: make(map[string][]ScoreThreshold)}
	for examType, table := range defaultScales {
		r.Register(examType, table)
	}
	return r
}

// Register binds a threshold table to an exam type, replacing any previous one.
func (r *ScaleRegistry) Register(examTypeID string, table []ScoreThreshold) {
	sorted := make([]ScoreThreshold, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercentage > sorted[j].MinPercentage
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[examTypeID] = sorted
}

// Lookup picks the highest threshold the percentage meets.
func (r *ScaleRegistry) Lookup(examTypeID string, percentage float64) model.StandardizedScore {
	r.mu.RLock()
	table := r.tables[examTypeID]
	r.mu.RUnlock()

	for _, t := range table {
		if percentage >= t.MinPercentage {
			return model.StandardizedScore{
				ExamTypeID:      examTypeID,
				Percentile:      t.Percentile,
				EquivalentRange: t.EquivalentRange,
			}
		}
	}
	return model.StandardizedScore{
		ExamTypeID:      examTypeID,
		EquivalentRange: belowBenchmarkRange,
		BelowBenchmark:  true,
	}
}

var defaultScales = map[string][]ScoreThreshold{
	"usmle_step1": {
		{MinPercentage: 90, Percentile: 95, EquivalentRange: "250-270"},
		{MinPercentage: 80, Percentile: 80, EquivalentRange: "235-249"},
		{MinPercentage: 70, Percentile: 60, EquivalentRange: "220-234"},
		{MinPercentage: 60, Percentile: 35, EquivalentRange: "205-219"},
		{MinPercentage: 50, Percentile: 15, EquivalentRange: "194-204"},
	},
	"usmle_step2": {
		{MinPercentage: 90, Percentile: 95, EquivalentRange: "260-280"},
		{MinPercentage: 80, Percentile: 80, EquivalentRange: "245-259"},
		{MinPercentage: 70, Percentile: 60, EquivalentRange: "230-244"},
		{MinPercentage: 60, Percentile: 35, EquivalentRange: "214-229"},
		{MinPercentage: 50, Percentile: 15, EquivalentRange: "200-213"},
	},
	"mcat": {
		{MinPercentage: 90, Percentile: 95, EquivalentRange: "518-528"},
		{MinPercentage: 80, Percentile: 85, EquivalentRange: "512-517"},
		{MinPercentage: 70, Percentile: 70, EquivalentRange: "506-511"},
		{MinPercentage: 60, Percentile: 50, EquivalentRange: "500-505"},
		{MinPercentage: 50, Percentile: 30, EquivalentRange: "494-499"},
	},
	"nclex": {
		{MinPercentage: 85, Percentile: 90, EquivalentRange: "very high pass probability"},
		{MinPercentage: 75, Percentile: 70, EquivalentRange: "high pass probability"},
		{MinPercentage: 65, Percentile: 50, EquivalentRange: "borderline"},
		{MinPercentage: 55, Percentile: 25, EquivalentRange: "low pass probability"},
	},
}
