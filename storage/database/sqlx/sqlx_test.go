package sqlxrepos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/tests"
)

var ctx = context.Background()

func TestGradingRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewGradingRepository(db)
	svc := grading.NewService(repo, new(testutil.NotifierMock), testutil.NewLogger())
	course := testutil.SeedCourse(t, db, "Algebra")

	comps := make([]grading.Composition, 0, 4)
	for _, name := range []string{"A", "B", "C", "D"} {
		comps = append(comps, testutil.CreateComposition(t, svc, course.ID, name, 20))
	}
	assert.Equal(t, []int{1, 2, 3, 4}, testutil.Indices(t, repo, course.ID))

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetComposition(ctx, comps[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Name)
		assert.Equal(t, course.ID, got.CourseID)

		_, err = repo.GetComposition(ctx, 404)
		assert.Equal(t, grading.ErrNotFound, err)
		_, err = repo.GetCourse(ctx, 404)
		assert.Equal(t, grading.ErrCourseNotFound, err)
	})

	t.Run("move", func(t *testing.T) {
		_, err := svc.Move(ctx, comps[3].ID, comps[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "A", "B", "C"}, testutil.Names(t, repo, course.ID))
		assert.Equal(t, []int{1, 2, 3, 4}, testutil.Indices(t, repo, course.ID))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, comps[0].ID))
		assert.Equal(t, []string{"D", "B", "C"}, testutil.Names(t, repo, course.ID))
		assert.Equal(t, []int{1, 2, 3}, testutil.Indices(t, repo, course.ID))
	})

	t.Run("duplicate index is rejected", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		assert.Error(t, tx.SetCompositionIndex(ctx, comps[1].ID, null.IntFrom(1)))
	})

	t.Run("cleared index sorts last", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		require.NoError(t, tx.SetCompositionIndex(ctx, comps[3].ID, null.Int{}))
		inTx, err := tx.QueryCompositions(ctx, course.ID)
		require.NoError(t, err)
		require.Len(t, inTx, 3)
		assert.Equal(t, comps[3].ID, inTx[2].ID)
		assert.Equal(t, 0, inTx[2].Index)
	})

	t.Run("finalize", func(t *testing.T) {
		comp, err := svc.MarkFinalized(ctx, comps[1].ID, course, true)
		require.NoError(t, err)
		assert.True(t, comp.IsFinalized)
	})

	t.Run("missing rows", func(t *testing.T) {
		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		assert.Equal(t, grading.ErrNotFound, tx.SetCompositionIndex(ctx, 404, null.IntFrom(9)))
		assert.Equal(t, grading.ErrNotFound, tx.DeleteComposition(ctx, 404))
		_, err = tx.SetCompositionFinalized(ctx, 404, true)
		assert.Equal(t, grading.ErrNotFound, err)
		assert.Equal(t, grading.ErrCourseNotFound, tx.LockCourse(ctx, 404))
	})
}

func TestGradingRepository_concurrentCreate(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewGradingRepository(db)
	svc := grading.NewService(repo, new(testutil.NotifierMock), testutil.NewLogger())
	course := testutil.SeedCourse(t, db, "Algebra")

	var wg sync.WaitGroup
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, _ = svc.Create(ctx, core.Actor{ID: course.CreatedByID}, course.ID, grading.NewComposition{Name: name, Scale: 20})
		}(name)
	}
	wg.Wait()

	// 5 * 20 = 100
	assert.Equal(t, []int{1, 2, 3, 4, 5}, testutil.Indices(t, repo, course.ID))
}

func TestGradingRepository_queries(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewGradingRepository(db)
	svc := grading.NewService(repo, new(testutil.NotifierMock), testutil.NewLogger())
	course := testutil.SeedCourse(t, db, "Algebra")
	comp := testutil.CreateComposition(t, svc, course.ID, "Midterm", 40)

	testutil.SeedEnrollment(t, db, course.ID, "S2", "Bob", "")
	testutil.SeedEnrollment(t, db, course.ID, "S1", "Ann", "ann@test.cd")
	testutil.SeedEnrollment(t, db, course.ID, "", "Unmapped", "")
	_, err := db.Exec(`INSERT INTO grade (student_id, grade_composition_id, grade) VALUES ($1, $2, $3), ($4, $5, NULL)`,
		"S1", comp.ID, 8.5, "S2", comp.ID)
	require.NoError(t, err)

	enrollments, err := repo.QueryEnrollments(ctx, grading.EnrollmentFilter{CourseID: course.ID, HasStudentID: true})
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "S1", enrollments[0].StudentID)
	assert.Equal(t, "ann@test.cd", enrollments[0].Email)
	assert.True(t, enrollments[0].UserID.Valid)
	assert.False(t, enrollments[1].UserID.Valid)

	grades, err := repo.QueryGrades(ctx, grading.GradeFilter{CompositionIDs: []int{comp.ID}, StudentIDs: []string{"S2"}})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.False(t, grades[0].Grade.Valid)

	board, err := svc.FinalBoard(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, board.Rows, 2)
	assert.Equal(t, null.Float64From(8.5), board.Rows[0].TotalGrade)
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewNotificationRepository(db)
	user := testutil.SeedUser(t, db, "Ann", "ann@test.cd")
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := core.Notification{ID: uuid.New().String(), RecipientID: user, CreatorID: user, Title: "t", Body: "old", CreatedAt: now.Add(-time.Minute)}
	newer := core.Notification{ID: uuid.New().String(), RecipientID: user, CreatorID: user, Title: "t", Body: "new", CreatedAt: now}
	require.NoError(t, repo.CreateNotifications(ctx, older, newer))
	require.NoError(t, repo.CreateNotifications(ctx))

	got, err := repo.QueryNotifications(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, "old", got[1].Body)
}
