package inmemdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core/grading"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) GetCourse(_ context.Context, id int) (grading.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.data.getCourse(id)
}

func (repo *gradingRepository) GetComposition(_ context.Context, id int) (grading.Composition, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.data.getComposition(id)
}

func (repo *gradingRepository) QueryCompositions(_ context.Context, courseID int) ([]grading.Composition, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.data.queryCompositions(courseID), nil
}

func (repo *gradingRepository) QueryEnrollments(_ context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]grading.Enrollment, 0)
	for _, enr := range repo.db.data.enrollments {
		if enr.CourseID != filter.CourseID {
			continue
		}
		if filter.HasStudentID && enr.StudentID == "" {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsString(filter.StudentIDs, enr.StudentID) {
			continue
		}
		enrollments = append(enrollments, enr)
	}
	sort.SliceStable(enrollments, func(i, j int) bool { return enrollments[i].StudentID < enrollments[j].StudentID })
	return enrollments, nil
}

func (repo *gradingRepository) QueryGrades(_ context.Context, filter grading.GradeFilter) ([]grading.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]grading.Grade, 0)
	for _, grade := range repo.db.data.grades {
		if len(filter.CompositionIDs) > 0 && !containsInt(filter.CompositionIDs, grade.CompositionID) {
			continue
		}
		if len(filter.StudentIDs) > 0 && !containsString(filter.StudentIDs, grade.StudentID) {
			continue
		}
		grades = append(grades, grade)
	}
	sort.SliceStable(grades, func(i, j int) bool { return grades[i].ID < grades[j].ID })
	return grades, nil
}

// BeginTx waits for the open transaction, if any, to end.
func (repo *gradingRepository) BeginTx(ctx context.Context) (grading.Tx, error) {
	select {
	case repo.db.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	repo.db.mu.RLock()
	snapshot := repo.db.data.clone()
	repo.db.mu.RUnlock()
	return &gradingTx{db: repo.db, data: snapshot, written: make(map[int]bool)}, nil
}

type gradingTx struct {
	mu      sync.Mutex
	db      *DB
	data    *dataset
	written map[int]bool // ids of the compositions changed or deleted
	done    bool
}

var _ grading.Tx = (*gradingTx)(nil)

func (tx *gradingTx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return sql.ErrTxDone
	}

	tx.db.mu.Lock()
	for id := range tx.written {
		if comp, ok := tx.data.compositions[id]; ok {
			tx.db.data.compositions[id] = comp
		} else {
			delete(tx.db.data.compositions, id)
		}
	}
	tx.db.mu.Unlock()
	tx.end()
	return nil
}

func (tx *gradingTx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return sql.ErrTxDone
	}
	tx.end()
	return nil
}

func (tx *gradingTx) end() {
	tx.done = true
	tx.data = nil
	tx.written = nil
	<-tx.db.sem
}

// use runs fn against the transaction's data unless the transaction has ended.
func (tx *gradingTx) use(fn func(ds *dataset) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return sql.ErrTxDone
	}
	return fn(tx.data)
}

func (tx *gradingTx) GetCourse(_ context.Context, id int) (course grading.Course, err error) {
	err = tx.use(func(ds *dataset) error {
		course, err = ds.getCourse(id)
		return err
	})
	return course, err
}

func (tx *gradingTx) GetComposition(_ context.Context, id int) (comp grading.Composition, err error) {
	err = tx.use(func(ds *dataset) error {
		comp, err = ds.getComposition(id)
		return err
	})
	return comp, err
}

func (tx *gradingTx) QueryCompositions(_ context.Context, courseID int) (comps []grading.Composition, err error) {
	err = tx.use(func(ds *dataset) error {
		comps = ds.queryCompositions(courseID)
		return nil
	})
	return comps, err
}

// LockCourse only checks the course exists: the whole store is already locked by the transaction.
func (tx *gradingTx) LockCourse(_ context.Context, courseID int) error {
	return tx.use(func(ds *dataset) error {
		_, err := ds.getCourse(courseID)
		return err
	})
}

func (tx *gradingTx) CreateComposition(_ context.Context, comp grading.Composition) (created grading.Composition, err error) {
	err = tx.use(func(ds *dataset) error {
		if _, err := ds.getCourse(comp.CourseID); err != nil {
			return err
		}
		if err := ds.checkIndexFree(comp.CourseID, comp.ID, comp.Index); err != nil {
			return err
		}
		// ids are shared with rows seeded while the tx is open
		tx.db.mu.Lock()
		comp.ID = tx.db.data.nextID()
		tx.db.mu.Unlock()
		ds.compositions[comp.ID] = comp
		tx.written[comp.ID] = true
		created = comp
		return nil
	})
	return created, err
}

func (tx *gradingTx) UpdateComposition(_ context.Context, comp grading.Composition) (updated grading.Composition, err error) {
	err = tx.use(func(ds *dataset) error {
		orig, err := ds.getComposition(comp.ID)
		if err != nil {
			return err
		}
		orig.Name = comp.Name
		orig.Scale = comp.Scale
		orig.UpdatedAt = comp.UpdatedAt
		ds.compositions[orig.ID] = orig
		tx.written[orig.ID] = true
		updated = orig
		return nil
	})
	return updated, err
}

func (tx *gradingTx) SetCompositionIndex(_ context.Context, id int, index null.Int) error {
	return tx.use(func(ds *dataset) error {
		comp, err := ds.getComposition(id)
		if err != nil {
			return err
		}
		comp.Index = 0
		if index.Valid {
			if err = ds.checkIndexFree(comp.CourseID, comp.ID, index.Int); err != nil {
				return err
			}
			comp.Index = index.Int
		}
		ds.compositions[id] = comp
		tx.written[id] = true
		return nil
	})
}

func (tx *gradingTx) SetCompositionFinalized(_ context.Context, id int, finalized bool) (updated grading.Composition, err error) {
	err = tx.use(func(ds *dataset) error {
		comp, err := ds.getComposition(id)
		if err != nil {
			return err
		}
		comp.IsFinalized = finalized
		ds.compositions[id] = comp
		tx.written[id] = true
		updated = comp
		return nil
	})
	return updated, err
}

func (tx *gradingTx) DeleteComposition(_ context.Context, id int) error {
	return tx.use(func(ds *dataset) error {
		if _, err := ds.getComposition(id); err != nil {
			return err
		}
		delete(ds.compositions, id)
		tx.written[id] = true
		return nil
	})
}

// dataset reads

func (ds *dataset) getCourse(id int) (grading.Course, error) {
	if course, ok := ds.courses[id]; ok {
		return course, nil
	}
	return grading.Course{}, grading.ErrCourseNotFound
}

func (ds *dataset) getComposition(id int) (grading.Composition, error) {
	if comp, ok := ds.compositions[id]; ok {
		return comp, nil
	}
	return grading.Composition{}, grading.ErrNotFound
}

// queryCompositions orders by index ASC NULLS LAST, id ASC.
func (ds *dataset) queryCompositions(courseID int) []grading.Composition {
	comps := make([]grading.Composition, 0)
	for _, comp := range ds.compositions {
		if comp.CourseID == courseID {
			comps = append(comps, comp)
		}
	}
	sort.Slice(comps, func(i, j int) bool {
		a, b := comps[i], comps[j]
		switch {
		case a.Index == b.Index:
			return a.ID < b.ID
		case a.Index == 0:
			return false
		case b.Index == 0:
			return true
		default:
			return a.Index < b.Index
		}
	})
	return comps
}

// checkIndexFree enforces the (course_id, index) uniqueness of non-NULL indices.
func (ds *dataset) checkIndexFree(courseID, id, index int) error {
	if index == 0 {
		return nil
	}
	for _, comp := range ds.compositions {
		if comp.CourseID == courseID && comp.ID != id && comp.Index == index {
			return fmt.Errorf("duplicate index %d in course %d (held by grade composition %d)", index, courseID, comp.ID)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, item := range list {
		if item == n {
			return true
		}
	}
	return false
}
