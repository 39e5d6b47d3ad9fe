package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	echoapi "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/tests"
)

var (
	owner   = core.Actor{ID: 1, Username: "prof", Email: "prof@test.cd"}
	visitor = core.Actor{ID: 2, Username: "student", Email: "student@test.cd"}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type dataResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, body []byte, data interface{}) string {
	t.Helper()
	var resp dataResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Message
}

func compositionsPath(courseID int, parts ...interface{}) string {
	path := fmt.Sprintf("/v1/courses/%d/grade-compositions", courseID)
	for _, p := range parts {
		path += fmt.Sprintf("/%v", p)
	}
	return path
}

func Test_gradingApi_access(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	other := f.engine.DB.AddCourse("Physics", visitor.ID)
	otherComp := testutil.CreateComposition(t, f.engine.Svc, other.ID, "Lab", 20)

	ownerToken := f.getToken(t, owner)
	visitorToken := f.getToken(t, visitor)
	newComp := marshallObj(t, grading.NewComposition{Name: "Midterm", Scale: 40})

	tests := []httpTest{
		{name: "auth required", path: compositionsPath(course.ID), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "non-numeric course id", path: "/v1/courses/lol/grade-compositions", token: ownerToken,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "invalid course id"}),
		},
		{
			name: "unknown course", path: compositionsPath(404), token: ownerToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "owner required to create", method: http.MethodPost, path: compositionsPath(course.ID), body: newComp, token: visitorToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "owner required for the final board", path: fmt.Sprintf("/v1/courses/%d/grade-board/final", course.ID), token: visitorToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "non-numeric composition id", path: compositionsPath(course.ID, "lol"), token: ownerToken,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "invalid grade composition id"}),
		},
		{
			name: "composition of another course", path: compositionsPath(course.ID, otherComp.ID), token: ownerToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "grade composition not found"}),
		},
		{
			name: "anyone authenticated lists", path: compositionsPath(course.ID), token: visitorToken,
			wantCode: http.StatusOK, wantData: marshallObj(t, echoapi.Response{Message: grading.MsgListed, Data: []grading.Composition{}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, f.do(tt))
		})
	}
}

func Test_gradingApi_create(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	token := f.getToken(t, owner)
	testutil.CreateComposition(t, f.engine.Svc, course.ID, "Homework", 30)

	body := func(name string, scale float64) []byte {
		return marshallObj(t, grading.NewComposition{Name: name, Scale: scale})
	}
	fields := func(kv ...string) []byte {
		m := make(map[string]string)
		for i := 0; i < len(kv); i += 2 {
			m[kv[i]] = kv[i+1]
		}
		return marshallObj(t, m)
	}

	tests := []httpTest{
		{name: "blank name", body: body("   ", 10), wantCode: http.StatusBadRequest, wantData: fields("name", "this field is required")},
		{name: "missing scale", body: body("Quiz", 0), wantCode: http.StatusBadRequest, wantData: fields("scale", "this field is required")},
		{name: "negative scale", body: body("Quiz", -5), wantCode: http.StatusBadRequest, wantData: fields("scale", "scale must be greater than 0")},
		{name: "duplicate name", body: body("HOMEWORK", 10), wantCode: http.StatusBadRequest, wantData: fields("name", "a grade composition with this name already exists")},
		{name: "total over 100", body: body("Final", 70.5), wantCode: http.StatusBadRequest, wantData: fields("scale", "total scale of a course cannot exceed 100")},
		{name: "created", body: body("  Final  ", 70), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = compositionsPath(course.ID)
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusCreated {
				var comp grading.Composition
				msg := decode(t, rec.Body.Bytes(), &comp)
				assert.Equal(t, grading.MsgCreated, msg)
				assert.Equal(t, "Final", comp.Name)
				assert.Equal(t, 2, comp.Index)
				assert.Equal(t, owner.ID, comp.CreatedByID)
				assert.False(t, comp.IsFinalized)
			}
		})
	}
}

func Test_gradingApi_updateAndDelete(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	token := f.getToken(t, owner)
	hw := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Homework", 30)
	mid := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Midterm", 30)
	fin := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Final", 40)

	t.Run("update keeps its own scale out of the total", func(t *testing.T) {
		scale := 40.0
		rec := f.do(httpTest{
			method: http.MethodPut, path: compositionsPath(course.ID, fin.ID), token: token,
			body: marshallObj(t, grading.UpdateComposition{Name: "Final exam", Scale: &scale}),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var comp grading.Composition
		assert.Equal(t, grading.MsgUpdated, decode(t, rec.Body.Bytes(), &comp))
		assert.Equal(t, "Final exam", comp.Name)
		assert.Equal(t, 40.0, comp.Scale)
	})

	t.Run("update over 100", func(t *testing.T) {
		scale := 45.0
		rec := f.do(httpTest{
			method: http.MethodPut, path: compositionsPath(course.ID, mid.ID), token: token,
			body: marshallObj(t, grading.UpdateComposition{Scale: &scale}),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete compacts indices", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodDelete, path: compositionsPath(course.ID, hw.ID), token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, grading.MsgDeleted, decode(t, rec.Body.Bytes(), nil))
		assert.Equal(t, []int{1, 2}, testutil.Indices(t, f.engine.Repo, course.ID))
		assert.Equal(t, []string{"Midterm", "Final exam"}, testutil.Names(t, f.engine.Repo, course.ID))
	})

	t.Run("deleted is not found", func(t *testing.T) {
		rec := f.do(httpTest{path: compositionsPath(course.ID, hw.ID), token: token})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_gradingApi_move(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	other := f.engine.DB.AddCourse("Physics", owner.ID)
	token := f.getToken(t, owner)

	comps := make([]grading.Composition, 0, 5)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		comps = append(comps, testutil.CreateComposition(t, f.engine.Svc, course.ID, name, 10))
	}
	lab := testutil.CreateComposition(t, f.engine.Svc, other.ID, "Lab", 10)

	move := func(switched, switchTo int) []byte {
		return marshallObj(t, grading.MoveComposition{SwitchedID: switched, SwitchToID: switchTo})
	}

	tests := []httpTest{
		{name: "self move", body: move(comps[0].ID, comps[0].ID), wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "invalid switch to index"})},
		{name: "unknown target", body: move(comps[0].ID, 404), wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "grade composition not found"})},
		{name: "switched from another course", body: move(lab.ID, comps[0].ID), wantCode: http.StatusNotFound},
		{name: "target in another course", body: move(comps[0].ID, lab.ID), wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "invalid switch to index"})},
		{name: "move 3 to 1", body: move(comps[2].ID, comps[0].ID), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = compositionsPath(course.ID, "switch")
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}

	assert.Equal(t, []string{"C", "A", "B", "D", "E"}, testutil.Names(t, f.engine.Repo, course.ID))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, testutil.Indices(t, f.engine.Repo, course.ID))
}

func Test_gradingApi_finalize(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	token := f.getToken(t, owner)
	comp := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Midterm", 40)
	for i, name := range []string{"Ann", "Bob", "Cid"} {
		f.engine.DB.AddEnrollment(grading.Enrollment{
			CourseID: course.ID, StudentID: fmt.Sprintf("S%d", i+1), FullName: name, UserID: null.IntFrom(10 + i),
		})
	}

	finalize := func(b bool) []byte { return marshallObj(t, grading.FinalizeComposition{IsFinalized: &b}) }
	path := compositionsPath(course.ID, comp.ID, "finalize")

	t.Run("is_finalized required", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPut, path: path, token: token, body: []byte(`{}`)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"is_finalized": "this field is required"}`, rec.Body.String())
	})

	t.Run("finalize notifies the roster", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPut, path: path, token: token, body: finalize(true)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got grading.Composition
		assert.Equal(t, grading.MsgFinalized, decode(t, rec.Body.Bytes(), &got))
		assert.True(t, got.IsFinalized)
		assert.Len(t, f.engine.Notifier.Notifications(), 3)
	})

	t.Run("finalize again does not notify", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPut, path: path, token: token, body: finalize(true)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, f.engine.Notifier.Notifications(), 3)
	})

	t.Run("un-finalize", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPut, path: path, token: token, body: finalize(false)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got grading.Composition
		assert.Equal(t, grading.MsgUnFinalized, decode(t, rec.Body.Bytes(), &got))
		assert.False(t, got.IsFinalized)
		assert.Len(t, f.engine.Notifier.Notifications(), 3)
	})
}

func Test_gradingApi_boards(t *testing.T) {
	f := setup(t)
	course := f.engine.DB.AddCourse("Algebra", owner.ID)
	token := f.getToken(t, owner)
	mid := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Midterm", 40)
	fin := testutil.CreateComposition(t, f.engine.Svc, course.ID, "Final", 60)
	f.engine.DB.AddEnrollment(grading.Enrollment{CourseID: course.ID, StudentID: "S1", FullName: "Ann"})
	f.engine.DB.AddEnrollment(grading.Enrollment{CourseID: course.ID, StudentID: "S2", FullName: "Bob"})
	f.engine.DB.AddGrade(grading.Grade{StudentID: "S1", CompositionID: mid.ID, Grade: null.Float64From(8)})
	f.engine.DB.AddGrade(grading.Grade{StudentID: "S1", CompositionID: fin.ID, Grade: null.Float64From(7)})

	boardPath := func(parts string) string { return fmt.Sprintf("/v1/courses/%d/grade-board/%s", course.ID, parts) }

	t.Run("template", func(t *testing.T) {
		rec := f.do(httpTest{path: boardPath("template"), token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var board struct {
			Headers []grading.BoardHeader    `json:"headers"`
			Rows    []map[string]interface{} `json:"rows"`
		}
		assert.Equal(t, grading.MsgTemplateBoard, decode(t, rec.Body.Bytes(), &board))
		assert.Len(t, board.Headers, 5)
		require.Len(t, board.Rows, 2)
		assert.Equal(t, 0.0, board.Rows[0][grading.CompositionKey(mid.ID)])
		assert.Nil(t, board.Rows[0][grading.HeaderTotalGrade])
	})

	t.Run("final", func(t *testing.T) {
		rec := f.do(httpTest{path: boardPath("final"), token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var board struct {
			Rows []map[string]interface{} `json:"rows"`
		}
		assert.Equal(t, grading.MsgFinalBoard, decode(t, rec.Body.Bytes(), &board))
		require.Len(t, board.Rows, 2)
		assert.Equal(t, "S1", board.Rows[0][grading.HeaderStudentID])
		assert.Equal(t, 7.4, board.Rows[0][grading.HeaderTotalGrade])
		assert.Nil(t, board.Rows[1][grading.HeaderTotalGrade])
		assert.Nil(t, board.Rows[1][grading.CompositionKey(fin.ID)])
	})

	t.Run("student", func(t *testing.T) {
		rec := f.do(httpTest{path: boardPath("students/S1"), token: f.getToken(t, visitor)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var board grading.StudentBoard
		assert.Equal(t, grading.MsgStudentBoard, decode(t, rec.Body.Bytes(), &board))
		assert.Equal(t, null.Float64From(7.4), board.TotalGrade)
		require.Len(t, board.Compositions, 2)
		assert.Len(t, board.Compositions[0].Grades, 1)
	})

	t.Run("no student id", func(t *testing.T) {
		rec := f.do(httpTest{path: boardPath("students"), token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var board grading.StudentBoard
		assert.Equal(t, grading.MsgNoStudentIDSet, decode(t, rec.Body.Bytes(), &board))
		require.Len(t, board.Compositions, 2)
		assert.Empty(t, board.Compositions[1].Grades)
		assert.False(t, board.TotalGrade.Valid)
	})
}
