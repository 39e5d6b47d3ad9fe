package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
)

const (
	courseTable      = "course"
	compositionTable = "grade_composition"
	gradeTable       = "grade"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	compositionColumns = []string{
		"id", "course_id", "name", "scale", `"index"`, "is_finalized", "created_by_id", "created_at", "updated_at",
	}
	compositionOrdering = []core.DBOrdering{
		{Field: `"index"`, Ascending: true},
		{Field: "id", Ascending: true},
	}
)

type (
	courseRow struct {
		ID          int    `db:"id"`
		Name        string `db:"name"`
		CreatedByID int    `db:"created_by_id"`
	}

	compositionRow struct {
		ID          int       `db:"id"`
		CourseID    int       `db:"course_id"`
		Name        string    `db:"name"`
		Scale       float64   `db:"scale"`
		Index       null.Int  `db:"index"`
		IsFinalized bool      `db:"is_finalized"`
		CreatedByID int       `db:"created_by_id"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	enrollmentRow struct {
		CourseID  int      `db:"course_id"`
		StudentID string   `db:"student_id"`
		FullName  string   `db:"full_name"`
		UserID    null.Int `db:"user_id"`
		Email     string   `db:"email"`
	}

	gradeRow struct {
		ID            int          `db:"id"`
		StudentID     string       `db:"student_id"`
		CompositionID int          `db:"grade_composition_id"`
		Grade         null.Float64 `db:"grade"`
	}
)

func (row compositionRow) toComposition() grading.Composition {
	return grading.Composition{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Name:        row.Name,
		Scale:       row.Scale,
		Index:       row.Index.Int, // 0 when NULL
		IsFinalized: row.IsFinalized,
		CreatedByID: row.CreatedByID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

// orderBy renders orderings; the index column sorts its NULLs last.
func orderBy(orderings []core.DBOrdering) []string {
	clauses := make([]string, len(orderings))
	for i, ord := range orderings {
		clauses[i] = ord.String()
		if ord.Field == `"index"` {
			clauses[i] += " NULLS LAST"
		}
	}
	return clauses
}

// gradingQueries holds the reads shared by the repository and its transactions.
type gradingQueries struct {
	ext sqlx.ExtContext
}

func (q gradingQueries) GetCourse(ctx context.Context, id int) (grading.Course, error) {
	var row courseRow
	query := psql.Select("id", "name", "created_by_id").From(courseTable).Where(sq.Eq{"id": id})
	if err := get(ctx, q.ext, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.Course{}, grading.ErrCourseNotFound
		}
		return grading.Course{}, errors.Wrap(err, "selecting course")
	}
	return grading.Course(row), nil
}

func (q gradingQueries) GetComposition(ctx context.Context, id int) (grading.Composition, error) {
	var row compositionRow
	query := psql.Select(compositionColumns...).From(compositionTable).Where(sq.Eq{"id": id})
	if err := get(ctx, q.ext, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.Composition{}, grading.ErrNotFound
		}
		return grading.Composition{}, errors.Wrap(err, "selecting grade composition")
	}
	return row.toComposition(), nil
}

func (q gradingQueries) QueryCompositions(ctx context.Context, courseID int) ([]grading.Composition, error) {
	var rows []compositionRow
	query := psql.Select(compositionColumns...).
		From(compositionTable).
		Where(sq.Eq{"course_id": courseID}).
		OrderBy(orderBy(compositionOrdering)...)
	if err := sel(ctx, q.ext, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting grade compositions")
	}

	comps := make([]grading.Composition, len(rows))
	for i, row := range rows {
		comps[i] = row.toComposition()
	}
	return comps, nil
}

type gradingRepository struct {
	gradingQueries
	db *sqlx.DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{gradingQueries: gradingQueries{ext: db}, db: db}
}

func (repo *gradingRepository) QueryEnrollments(ctx context.Context, filter grading.EnrollmentFilter) ([]grading.Enrollment, error) {
	query := psql.Select("e.course_id", "e.student_id", "e.full_name", "e.user_id", "COALESCE(u.email, '') AS email").
		From("enrollment e").
		LeftJoin(`"user" u ON u.id = e.user_id`).
		Where(sq.Eq{"e.course_id": filter.CourseID}).
		OrderBy(core.DBOrdering{Field: "e.student_id", Ascending: true}.String())
	if len(filter.StudentIDs) > 0 {
		query = query.Where(sq.Eq{"e.student_id": filter.StudentIDs})
	}
	if filter.HasStudentID {
		query = query.Where(sq.NotEq{"e.student_id": ""})
	}

	var rows []enrollmentRow
	if err := sel(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]grading.Enrollment, len(rows))
	for i, row := range rows {
		enrollments[i] = grading.Enrollment(row)
	}
	return enrollments, nil
}

func (repo *gradingRepository) QueryGrades(ctx context.Context, filter grading.GradeFilter) ([]grading.Grade, error) {
	query := psql.Select("id", "student_id", "grade_composition_id", "grade").
		From(gradeTable).
		OrderBy(core.DBOrdering{Field: "id", Ascending: true}.String())
	if len(filter.CompositionIDs) > 0 {
		query = query.Where(sq.Eq{"grade_composition_id": filter.CompositionIDs})
	}
	if len(filter.StudentIDs) > 0 {
		query = query.Where(sq.Eq{"student_id": filter.StudentIDs})
	}

	var rows []gradeRow
	if err := sel(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]grading.Grade, len(rows))
	for i, row := range rows {
		grades[i] = grading.Grade(row)
	}
	return grades, nil
}

// BeginTx opens a READ COMMITTED transaction: LockCourse row locks then serialize writers of a course.
func (repo *gradingRepository) BeginTx(ctx context.Context) (grading.Tx, error) {
	tx, err := repo.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &gradingTx{gradingQueries: gradingQueries{ext: tx}, tx: tx}, nil
}

type gradingTx struct {
	gradingQueries
	tx *sqlx.Tx
}

var _ grading.Tx = (*gradingTx)(nil)

func (tx *gradingTx) Commit() error   { return tx.tx.Commit() }
func (tx *gradingTx) Rollback() error { return tx.tx.Rollback() }

func (tx *gradingTx) LockCourse(ctx context.Context, courseID int) error {
	var id int
	query := psql.Select("id").From(courseTable).Where(sq.Eq{"id": courseID}).Suffix("FOR UPDATE")
	if err := get(ctx, tx.ext, &id, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.ErrCourseNotFound
		}
		return errors.Wrap(err, "locking course")
	}
	return nil
}

func (tx *gradingTx) CreateComposition(ctx context.Context, comp grading.Composition) (grading.Composition, error) {
	index := null.IntFrom(comp.Index)
	if comp.Index == 0 {
		index = null.Int{}
	}

	var row compositionRow
	query := psql.Insert(compositionTable).
		Columns(compositionColumns[1:]...).
		Values(comp.CourseID, comp.Name, comp.Scale, index, comp.IsFinalized, comp.CreatedByID, comp.CreatedAt, comp.UpdatedAt).
		Suffix(returning())
	if err := get(ctx, tx.ext, &row, query); err != nil {
		return grading.Composition{}, errors.Wrap(err, "inserting grade composition")
	}
	return row.toComposition(), nil
}

func (tx *gradingTx) UpdateComposition(ctx context.Context, comp grading.Composition) (grading.Composition, error) {
	query := psql.Update(compositionTable).
		Set("name", comp.Name).
		Set("scale", comp.Scale).
		Set("updated_at", comp.UpdatedAt).
		Where(sq.Eq{"id": comp.ID}).
		Suffix(returning())
	return tx.updateReturning(ctx, query)
}

func (tx *gradingTx) SetCompositionIndex(ctx context.Context, id int, index null.Int) error {
	query := psql.Update(compositionTable).Set(`"index"`, index).Where(sq.Eq{"id": id})
	res, err := exec(ctx, tx.ext, query)
	if err != nil {
		return errors.Wrap(err, "updating grade composition index")
	}
	return checkAffected(res)
}

func (tx *gradingTx) SetCompositionFinalized(ctx context.Context, id int, finalized bool) (grading.Composition, error) {
	query := psql.Update(compositionTable).
		Set("is_finalized", finalized).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix(returning())
	return tx.updateReturning(ctx, query)
}

func (tx *gradingTx) DeleteComposition(ctx context.Context, id int) error {
	res, err := exec(ctx, tx.ext, psql.Delete(compositionTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting grade composition")
	}
	return checkAffected(res)
}

func (tx *gradingTx) updateReturning(ctx context.Context, query sq.UpdateBuilder) (grading.Composition, error) {
	var row compositionRow
	if err := get(ctx, tx.ext, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grading.Composition{}, grading.ErrNotFound
		}
		return grading.Composition{}, errors.Wrap(err, "updating grade composition")
	}
	return row.toComposition(), nil
}

func returning() string {
	return "RETURNING " + strings.Join(compositionColumns, ", ")
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return grading.ErrNotFound
	}
	return nil
}
