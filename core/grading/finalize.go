package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/core"
)

type State string

const (
	StateDraft     State = "draft"
	StateFinalized State = "finalized"

	finalizedTitle = "Grade composition finalized"
)

func (c Composition) State() State {
	if c.IsFinalized {
		return StateFinalized
	}
	return StateDraft
}

// FinalizedNotifications builds one notification per enrollment of the course that maps to a user.
func FinalizedNotifications(comp Composition, course Course, enrollments []Enrollment) []core.Notification {
	now := time.Now().UTC()
	body := fmt.Sprintf("Grade composition %s of course %s is finalized!, check it out", comp.Name, course.Name)

	notifications := make([]core.Notification, 0, len(enrollments))
	for _, enr := range enrollments {
		if !enr.UserID.Valid {
			continue
		}
		notifications = append(notifications, core.Notification{
			ID:             uuid.New().String(),
			RecipientID:    enr.UserID.Int,
			RecipientName:  enr.FullName,
			RecipientEmail: enr.Email,
			CreatorID:      course.CreatedByID,
			Title:          finalizedTitle,
			Body:           body,
			CreatedAt:      now,
		})
	}
	return notifications
}

// notifyFinalized fans the finalization of comp out to the course roster.
// It runs after the state change is committed; failures are logged and never returned.
func (svc *Service) notifyFinalized(ctx context.Context, comp Composition, course Course) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseID: course.ID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("querying enrollments of course %d: %v", course.ID, err), err)
		return
	}

	notifications := FinalizedNotifications(comp, course, enrollments)
	if skipped := len(enrollments) - len(notifications); skipped > 0 {
		svc.logger.Debug(fmt.Sprintf("finalize: %d enrollment(s) of course %d without a user", skipped, course.ID))
	}
	if len(notifications) > 0 {
		svc.notifSvc.Notify(notifications...)
	}
}
