package grading

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// nextIndex returns the index of a composition appended to comps: max(indices, 0) + 1.
func nextIndex(comps []Composition) int {
	var max int
	for _, comp := range comps {
		if comp.Index > max {
			max = comp.Index
		}
	}
	return max + 1
}

// compactAfter closes the gap left by a deleted composition at index `deleted`:
// every higher index of the course is decremented by 1, in ascending order.
// comps must be ordered by index ASC.
func compactAfter(ctx context.Context, tx Tx, comps []Composition, deleted int) error {
	for _, comp := range comps {
		if comp.Index <= deleted {
			continue
		}
		if err := tx.SetCompositionIndex(ctx, comp.ID, null.IntFrom(comp.Index-1)); err != nil {
			return errors.Wrapf(err, "decrementing index of grade composition %d", comp.ID)
		}
	}
	return nil
}

// move puts `switched` at the index currently held by `switchTo` and shifts the compositions
// in between by one position towards the index `switched` left.
//
// The switched index is cleared first, then
//   - moving earlier (from > to): indices in [to, from) are incremented, highest first;
//   - moving later (from < to): indices in (from, to] are decremented, lowest first;
//
// so no two compositions ever hold the same index, and finally `switched` takes `to`.
func move(ctx context.Context, tx Tx, switched, switchTo Composition) error {
	from, to := switched.Index, switchTo.Index

	if err := tx.SetCompositionIndex(ctx, switched.ID, null.Int{}); err != nil {
		return errors.Wrap(err, "clearing switched index")
	}

	comps, err := tx.QueryCompositions(ctx, switched.CourseID)
	if err != nil {
		return errors.Wrap(err, "querying grade compositions")
	}

	if from > to {
		for i := len(comps) - 1; i >= 0; i-- {
			comp := comps[i]
			if comp.ID == switched.ID || comp.Index < to || comp.Index >= from {
				continue
			}
			if err = tx.SetCompositionIndex(ctx, comp.ID, null.IntFrom(comp.Index+1)); err != nil {
				return errors.Wrapf(err, "incrementing index of grade composition %d", comp.ID)
			}
		}
	} else {
		for _, comp := range comps {
			if comp.ID == switched.ID || comp.Index <= from || comp.Index > to {
				continue
			}
			if err = tx.SetCompositionIndex(ctx, comp.ID, null.IntFrom(comp.Index-1)); err != nil {
				return errors.Wrapf(err, "decrementing index of grade composition %d", comp.ID)
			}
		}
	}

	return errors.Wrap(tx.SetCompositionIndex(ctx, switched.ID, null.IntFrom(to)), "setting switched index")
}

// reindex rewrites the course's indices to 1..N keeping their current relative order.
// comps must be ordered as returned by Reader.QueryCompositions (NULL indices last).
// Only compositions whose index changes are written.
func reindex(ctx context.Context, tx Tx, comps []Composition) ([]Composition, error) {
	reindexed := make([]Composition, 0, len(comps))
	for i, comp := range comps {
		want := i + 1
		if comp.Index != want {
			if err := tx.SetCompositionIndex(ctx, comp.ID, null.IntFrom(want)); err != nil {
				return nil, errors.Wrapf(err, "reindexing grade composition %d", comp.ID)
			}
			comp.Index = want
		}
		reindexed = append(reindexed, comp)
	}
	return reindexed, nil
}
