package notifsvc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	appfs "github.com/trezcool/gradebook/fs"
	"github.com/trezcool/gradebook/services/email"
	"github.com/trezcool/gradebook/storage/database/inmem"
	"github.com/trezcool/gradebook/tests"
)

type senderMock struct {
	mu      sync.Mutex
	sent    []core.Notification
	err     error
	release chan struct{} // when set, Send blocks until it is closed
}

func (s *senderMock) Send(ctx context.Context, notif core.Notification) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, notif)
	return s.err
}

func (s *senderMock) Sent() []core.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Notification(nil), s.sent...)
}

func newConfig(queueSize, workers int) *core.Config {
	conf := core.NewConfig()
	conf.Notification.QueueSize = queueSize
	conf.Notification.Workers = workers
	conf.Notification.SendTimeout = time.Second
	return conf
}

func notifications(n int) []core.Notification {
	list := make([]core.Notification, n)
	for i := range list {
		list[i] = core.Notification{ID: fmt.Sprintf("n%d", i), RecipientID: i + 1, Title: "t", Body: "b"}
	}
	return list
}

func TestDispatcher_deliversToEverySender(t *testing.T) {
	logger := testutil.NewLogger()
	s1, s2 := new(senderMock), new(senderMock)
	d := NewDispatcher(newConfig(10, 3), logger, s1, s2)

	d.Notify(notifications(5)...)
	d.Close()

	assert.Len(t, s1.Sent(), 5)
	assert.Len(t, s2.Sent(), 5)
	assert.Zero(t, logger.Count("warn"))
}

func TestDispatcher_logsSendFailures(t *testing.T) {
	logger := testutil.NewLogger()
	failing := &senderMock{err: errors.New("smtp down")}
	ok := new(senderMock)
	d := NewDispatcher(newConfig(10, 1), logger, failing, ok)

	d.Notify(notifications(2)...)
	d.Close()

	assert.Len(t, ok.Sent(), 2, "a failing sender does not stop the others")
	assert.Equal(t, 2, logger.Count("error"))
}

func TestDispatcher_dropsWhenFull(t *testing.T) {
	logger := testutil.NewLogger()
	blocked := &senderMock{release: make(chan struct{})}
	d := NewDispatcher(newConfig(2, 1), logger, blocked)

	// the worker holds at most one, the queue two more
	start := time.Now()
	d.Notify(notifications(10)...)
	assert.Less(t, int64(time.Since(start)), int64(500*time.Millisecond), "Notify must not block")

	close(blocked.release)
	d.Close()

	sent := len(blocked.Sent())
	assert.GreaterOrEqual(t, sent, 2)
	assert.LessOrEqual(t, sent, 3)
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestDispatcher_Close(t *testing.T) {
	logger := testutil.NewLogger()
	s := new(senderMock)
	d := NewDispatcher(newConfig(0, 0), logger, s)

	d.Notify(notifications(1)...)
	d.Close()
	d.Close()
	assert.Len(t, s.Sent(), 1)

	d.Notify(notifications(3)...)
	assert.Len(t, s.Sent(), 1)
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestEmailSender(t *testing.T) {
	conf := core.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(appfs.FS, "http://localhost:3000", true, logger)
	require.Zero(t, logger.Count("error"))

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	sender := NewEmailSender(mailSvc)

	notif := core.Notification{
		RecipientName:  "Ann",
		RecipientEmail: "ann@test.cd",
		Title:          "Grade composition finalized",
		Body:           "Grade composition Midterm of course Algebra is finalized!, check it out",
	}
	require.NoError(t, sender.Send(context.Background(), notif))

	notif.RecipientEmail = ""
	require.NoError(t, sender.Send(context.Background(), notif))

	msgs := mailSvc.Messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "ann@test.cd", msg.To[0].Address)
	assert.Equal(t, "Grade composition finalized", msg.Subject)
	assert.True(t, strings.Contains(msg.TextContent, "Hi Ann,"), msg.TextContent)
	assert.True(t, strings.Contains(msg.TextContent, "Midterm of course Algebra"), msg.TextContent)
	assert.True(t, strings.Contains(msg.HTMLContent, "Midterm of course Algebra"), msg.HTMLContent)
}

func TestStoreSender(t *testing.T) {
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	d := NewDispatcher(newConfig(10, 2), testutil.NewLogger(), NewStoreSender(repo))

	d.Notify(notifications(3)...)
	d.Notify(core.Notification{ID: "again", RecipientID: 1})
	d.Close()

	stored, err := repo.QueryNotifications(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
