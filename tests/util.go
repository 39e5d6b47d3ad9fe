package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/storage/database"
	"github.com/trezcool/gradebook/storage/database/inmem"
)

// TestDatabaseURLEnv names the env var holding the DSN of the Postgres database used by store tests.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

// Logger is a core.Logger that records what it is given.
type (
	Logger struct {
		mu      sync.Mutex
		Entries []LogEntry
	}

	LogEntry struct {
		Level string
		Msg   string
		Args  []interface{}
	}
)

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger { return new(Logger) }

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// NotifierMock is a core.NotificationService that keeps every notification, synchronously.
type NotifierMock struct {
	mu   sync.Mutex
	Sent []core.Notification
}

var _ core.NotificationService = (*NotifierMock)(nil)

func (n *NotifierMock) Notify(notifications ...core.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, notifications...)
}

func (n *NotifierMock) Notifications() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Notification(nil), n.Sent...)
}

func (n *NotifierMock) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = nil
}

// Engine bundles a grading service running on the in-memory store.
type Engine struct {
	DB       *inmemdb.DB
	Repo     grading.Repository
	Svc      *grading.Service
	Notifier *NotifierMock
	Logger   *Logger
}

func NewEngine() *Engine {
	db := inmemdb.Open()
	repo := inmemdb.NewGradingRepository(db)
	notifier := new(NotifierMock)
	logger := NewLogger()
	return &Engine{
		DB:       db,
		Repo:     repo,
		Svc:      grading.NewService(repo, notifier, logger),
		Notifier: notifier,
		Logger:   logger,
	}
}

func CreateComposition(t *testing.T, svc grading.ServiceInterface, courseID int, name string, scale float64) grading.Composition {
	t.Helper()
	comp, err := svc.Create(context.Background(), core.Actor{ID: 1}, courseID, grading.NewComposition{Name: name, Scale: scale})
	if err != nil {
		t.Fatalf("CreateComposition() failed: %v", err)
	}
	return comp
}

// Indices returns the index of every composition of a course, in store order.
func Indices(t *testing.T, repo grading.Reader, courseID int) []int {
	t.Helper()
	comps, err := repo.QueryCompositions(context.Background(), courseID)
	if err != nil {
		t.Fatalf("QueryCompositions() failed: %v", err)
	}
	indices := make([]int, len(comps))
	for i, comp := range comps {
		indices[i] = comp.Index
	}
	return indices
}

// Names returns the name of every composition of a course, in store order.
func Names(t *testing.T, repo grading.Reader, courseID int) []string {
	t.Helper()
	comps, err := repo.QueryCompositions(context.Background(), courseID)
	if err != nil {
		t.Fatalf("QueryCompositions() failed: %v", err)
	}
	names := make([]string, len(comps))
	for i, comp := range comps {
		names[i] = comp.Name
	}
	return names
}

// PrepareDB opens the database named by TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", TestDatabaseURLEnv)
	}

	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()

	q := `TRUNCATE notification, grade, grade_composition, enrollment, course, "user" RESTART IDENTITY CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

// SeedCourse inserts a course owned by a new user.
func SeedCourse(t *testing.T, db *sqlx.DB, name string) grading.Course {
	t.Helper()

	owner := SeedUser(t, db, name+" owner", fmt.Sprintf("owner-%s@test.cd", name))
	course := grading.Course{Name: name, CreatedByID: owner}
	if err := db.QueryRow(`INSERT INTO course (name, created_by_id) VALUES ($1, $2) RETURNING id`, name, owner).Scan(&course.ID); err != nil {
		t.Fatalf("SeedCourse() failed: %v", err)
	}
	return course
}

func SeedUser(t *testing.T, db *sqlx.DB, fullName, email string) int {
	t.Helper()

	var id int
	if err := db.QueryRow(`INSERT INTO "user" (full_name, email) VALUES ($1, $2) RETURNING id`, fullName, email).Scan(&id); err != nil {
		t.Fatalf("SeedUser() failed: %v", err)
	}
	return id
}

// SeedEnrollment enrolls a student, creating their user when email is set.
func SeedEnrollment(t *testing.T, db *sqlx.DB, courseID int, studentID, fullName, email string) grading.Enrollment {
	t.Helper()

	enr := grading.Enrollment{CourseID: courseID, StudentID: studentID, FullName: fullName, Email: email}
	if email != "" {
		enr.UserID.SetValid(SeedUser(t, db, fullName, email))
	}
	q := `INSERT INTO enrollment (course_id, student_id, full_name, user_id) VALUES ($1, $2, $3, $4)`
	if _, err := db.Exec(q, courseID, studentID, fullName, enr.UserID); err != nil {
		t.Fatalf("SeedEnrollment() failed: %v", err)
	}
	return enr
}
