// Package progress summarizes what a learner has completed, based on history.
package progress

import (
	"sort"
	"time"

	"github.com/sakif/lesson-runner/internal/model"
)

// LessonStatus is one lesson of the catalogue with its attempt counts.
type LessonStatus struct {
	Identifier string `json:"identifier"`
	Completed  bool   `json:"completed"`
	Attempts   int    `json:"attempts"`
}

// CategoryProgress is completed-over-total for one category.
type CategoryProgress struct {
	Category  string         `json:"category"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Lessons   []LessonStatus `json:"lessons"`
}

// Summary is the progress report shown by `lessonrun progress` and GET /api/progress.
type Summary struct {
	TotalExecutions int                `json:"totalExecutions"`
	Successful      int                `json:"successful"`
	Failed          int                `json:"failed"`
	UniqueCompleted int                `json:"uniqueCompleted"`
	TotalAvailable  int                `json:"totalAvailable"`
	LastRun         *time.Time         `json:"lastRun,omitempty"`
	Categories      []CategoryProgress `json:"categories"`
}

// Compute builds a Summary from the history log and the lesson catalogue
// (category → sorted identifiers).
//
// A lesson counts as completed once any attempt succeeded, in either mode.
// Lessons that appear in history but no longer exist in the catalogue count
// toward UniqueCompleted but not toward any category.
func Compute(entries []model.HistoryEntry, catalogue map[string][]string) Summary {
	type key struct{ category, identifier string }

	var s Summary
	completed := make(map[key]bool)
	attempts := make(map[key]int)

	for _, e := range entries {
		s.TotalExecutions++
		k := key{e.Category, e.Identifier}
		attempts[k]++
		if e.Result.Success {
			s.Successful++
			completed[k] = true
		} else {
			s.Failed++
		}
		if s.LastRun == nil || e.Timestamp.After(*s.LastRun) {
			ts := e.Timestamp
			s.LastRun = &ts
		}
	}
	s.UniqueCompleted = len(completed)

	categories := make([]string, 0, len(catalogue))
	for c := range catalogue {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	s.Categories = make([]CategoryProgress, 0, len(categories))
	for _, c := range categories {
		cp := CategoryProgress{Category: c, Lessons: make([]LessonStatus, 0, len(catalogue[c]))}
		for _, id := range catalogue[c] {
			k := key{c, id}
			cp.Total++
			if completed[k] {
				cp.Completed++
			}
			cp.Lessons = append(cp.Lessons, LessonStatus{
				Identifier: id,
				Completed:  completed[k],
				Attempts:   attempts[k],
			})
		}
		s.TotalAvailable += cp.Total
		s.Categories = append(s.Categories, cp)
	}
	return s
}

// Percent returns completed over available as a 0-100 value.
func (s Summary) Percent() float64 {
	if s.TotalAvailable == 0 {
		return 0
	}
	done := 0
	for _, c := range s.Categories {
		done += c.Completed
	}
	return float64(done) * 100 / float64(s.TotalAvailable)
}
