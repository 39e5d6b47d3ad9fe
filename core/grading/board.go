package grading

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/gradebook/core"
)

const (
	HeaderIndex      = "index"
	HeaderStudentID  = "student_id"
	HeaderFullName   = "full_name"
	HeaderTotalGrade = "total_grade"

	compositionKeyPrefix = "grade_composition_"
)

type (
	BoardHeader struct {
		Key      string       `json:"key"`
		Label    string       `json:"label"`
		Metadata *Composition `json:"metadata,omitempty"`
	}

	BoardCell struct {
		CompositionID int
		Value         null.Float64
	}

	// BoardRow is one student of a Board. It marshals to a flat object keyed by BoardHeader.Key.
	BoardRow struct {
		Index      int
		StudentID  string
		FullName   string
		Cells      []BoardCell // ordered as the board's compositions
		TotalGrade null.Float64
	}

	Board struct {
		Headers []BoardHeader `json:"headers"`
		Rows    []BoardRow    `json:"rows"`
	}

	CompositionGrades struct {
		Composition
		Grades []Grade `json:"grades"`
	}

	StudentBoard struct {
		StudentID    string              `json:"student_id"`
		Student      *Enrollment         `json:"student"`
		Compositions []CompositionGrades `json:"grade_compositions"`
		TotalGrade   null.Float64        `json:"total_grade"`
	}
)

func CompositionKey(id int) string {
	return compositionKeyPrefix + strconv.Itoa(id)
}

func (row BoardRow) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, len(row.Cells)+4)
	data[HeaderIndex] = row.Index
	data[HeaderStudentID] = row.StudentID
	data[HeaderFullName] = row.FullName
	for _, cell := range row.Cells {
		data[CompositionKey(cell.CompositionID)] = cell.Value
	}
	data[HeaderTotalGrade] = row.TotalGrade
	return json.Marshal(data)
}

// Message is the API message matching the board's request.
func (sb StudentBoard) Message() string {
	if sb.StudentID == "" {
		return MsgNoStudentIDSet
	}
	return MsgStudentBoard
}

func boardHeaders(comps []Composition) []BoardHeader {
	headers := []BoardHeader{
		{Key: HeaderIndex, Label: "No."},
		{Key: HeaderStudentID, Label: "Student ID"},
		{Key: HeaderFullName, Label: "Full name"},
	}
	for i := range comps {
		comp := comps[i]
		headers = append(headers, BoardHeader{Key: CompositionKey(comp.ID), Label: comp.Name, Metadata: &comp})
	}
	return headers
}

// totalGrade is the scale-weighted mean of the recorded grades, rounded to 2 decimals.
// Compositions without a recorded grade are left out; with none recorded the total is null.
func totalGrade(comps []Composition, grades map[int]null.Float64) null.Float64 {
	var weighted, scales float64
	for _, comp := range comps {
		grade, ok := grades[comp.ID]
		if !ok || !grade.Valid {
			continue
		}
		weighted += grade.Float64 * comp.Scale
		scales += comp.Scale
	}
	if scales == 0 {
		return null.Float64{}
	}
	return null.Float64From(core.Round2(weighted / scales))
}

// gradesByStudent indexes grades by student ID then composition ID.
// The first recorded value of a (student, composition) pair wins.
func gradesByStudent(grades []Grade) map[string]map[int]null.Float64 {
	byStudent := make(map[string]map[int]null.Float64)
	for _, grade := range grades {
		byComp, ok := byStudent[grade.StudentID]
		if !ok {
			byComp = make(map[int]null.Float64)
			byStudent[grade.StudentID] = byComp
		}
		if current, ok := byComp[grade.CompositionID]; ok && current.Valid {
			continue
		}
		byComp[grade.CompositionID] = grade.Grade
	}
	return byStudent
}

func compositionIDs(comps []Composition) []int {
	ids := make([]int, len(comps))
	for i, comp := range comps {
		ids[i] = comp.ID
	}
	return ids
}

// loadBoard fetches the compositions and the roster of a course concurrently.
// Only enrollments mapped to a student ID are returned, restricted to `studentIDs` when given.
func (svc *Service) loadBoard(ctx context.Context, courseID int, studentIDs ...string) ([]Composition, []Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, nil, err
	}

	var (
		comps       []Composition
		enrollments []Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		comps, err = svc.repo.QueryCompositions(gctx, courseID)
		return errors.Wrap(err, "querying grade compositions")
	})
	g.Go(func() (err error) {
		enrollments, err = svc.repo.QueryEnrollments(gctx, EnrollmentFilter{
			CourseID:     courseID,
			StudentIDs:   studentIDs,
			HasStudentID: true,
		})
		return errors.Wrap(err, "querying enrollments")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return comps, enrollments, nil
}

// TemplateBoard returns the empty grade board of a course: one row per enrolled student, every cell 0.
func (svc *Service) TemplateBoard(ctx context.Context, courseID int) (Board, error) {
	comps, enrollments, err := svc.loadBoard(ctx, courseID)
	if err != nil {
		return Board{}, err
	}

	rows := make([]BoardRow, 0, len(enrollments))
	for i, enr := range enrollments {
		cells := make([]BoardCell, len(comps))
		for j, comp := range comps {
			cells[j] = BoardCell{CompositionID: comp.ID, Value: null.Float64From(0)}
		}
		rows = append(rows, BoardRow{Index: i + 1, StudentID: enr.StudentID, FullName: enr.FullName, Cells: cells})
	}
	return Board{Headers: boardHeaders(comps), Rows: rows}, nil
}

// FinalBoard returns the grade board of a course with every student's recorded grades and total.
func (svc *Service) FinalBoard(ctx context.Context, courseID int) (Board, error) {
	comps, enrollments, err := svc.loadBoard(ctx, courseID)
	if err != nil {
		return Board{}, err
	}

	var grades []Grade
	if len(comps) > 0 && len(enrollments) > 0 {
		if grades, err = svc.repo.QueryGrades(ctx, GradeFilter{CompositionIDs: compositionIDs(comps)}); err != nil {
			return Board{}, errors.Wrap(err, "querying grades")
		}
	}
	byStudent := gradesByStudent(grades)

	rows := make([]BoardRow, 0, len(enrollments))
	for i, enr := range enrollments {
		studentGrades := byStudent[enr.StudentID]
		cells := make([]BoardCell, len(comps))
		for j, comp := range comps {
			cells[j] = BoardCell{CompositionID: comp.ID, Value: studentGrades[comp.ID]}
		}
		rows = append(rows, BoardRow{
			Index:      i + 1,
			StudentID:  enr.StudentID,
			FullName:   enr.FullName,
			Cells:      cells,
			TotalGrade: totalGrade(comps, studentGrades),
		})
	}
	return Board{Headers: boardHeaders(comps), Rows: rows}, nil
}

// StudentBoard returns the compositions of a course with the grades of one student.
// An empty studentID yields the compositions with no grades.
func (svc *Service) StudentBoard(ctx context.Context, courseID int, studentID string) (StudentBoard, error) {
	studentID = core.CleanString(studentID)

	var filter []string
	if studentID != "" {
		filter = []string{studentID}
	}
	comps, enrollments, err := svc.loadBoard(ctx, courseID, filter...)
	if err != nil {
		return StudentBoard{}, err
	}

	board := StudentBoard{StudentID: studentID, Compositions: make([]CompositionGrades, len(comps))}
	for i, comp := range comps {
		board.Compositions[i] = CompositionGrades{Composition: comp, Grades: []Grade{}}
	}
	if studentID == "" {
		return board, nil
	}

	for i := range enrollments {
		if enrollments[i].StudentID == studentID {
			board.Student = &enrollments[i]
			break
		}
	}

	if len(comps) == 0 {
		return board, nil
	}
	grades, err := svc.repo.QueryGrades(ctx, GradeFilter{CompositionIDs: compositionIDs(comps), StudentIDs: filter})
	if err != nil {
		return StudentBoard{}, errors.Wrap(err, "querying grades")
	}
	for _, grade := range grades {
		for i := range board.Compositions {
			if board.Compositions[i].ID == grade.CompositionID {
				board.Compositions[i].Grades = append(board.Compositions[i].Grades, grade)
			}
		}
	}
	board.TotalGrade = totalGrade(comps, gradesByStudent(grades)[studentID])
	return board, nil
}
