package notifsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/gradebook/core"
)

const defaultSendTimeout = 10 * time.Second

type (
	// Sender delivers one notification over one channel (email, persistence...).
	Sender interface {
		Send(ctx context.Context, notification core.Notification) error
	}

	// Dispatcher queues notifications and hands them to every Sender from a fixed pool of workers.
	Dispatcher struct {
		queue       chan core.Notification
		senders     []Sender
		logger      core.Logger
		sendTimeout time.Duration

		mu     sync.RWMutex // guards closed
		closed bool
		wg     sync.WaitGroup
	}
)

var _ core.NotificationService = (*Dispatcher)(nil)

func NewDispatcher(conf *core.Config, logger core.Logger, senders ...Sender) *Dispatcher {
	size, workers, timeout := conf.Notification.QueueSize, conf.Notification.Workers, conf.Notification.SendTimeout
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	d := &Dispatcher{
		queue:       make(chan core.Notification, size),
		senders:     senders,
		logger:      logger,
		sendTimeout: timeout,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Notify enqueues notifications without blocking. Those that do not fit in the queue are dropped.
func (d *Dispatcher) Notify(notifications ...core.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn(fmt.Sprintf("notification dispatcher closed: dropping %d notification(s)", len(notifications)))
		return
	}
	for i, notif := range notifications {
		select {
		case d.queue <- notif:
		default:
			d.logger.Warn(fmt.Sprintf("notification queue full: dropping %d notification(s)", len(notifications)-i))
			return
		}
	}
}

// Close stops accepting notifications and waits for the queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for notif := range d.queue {
		d.send(notif)
	}
}

func (d *Dispatcher) send(notif core.Notification) {
	for _, sender := range d.senders {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := sender.Send(ctx, notif); err != nil {
			d.logger.Error(fmt.Sprintf("sending notification %s to user %d: %v", notif.ID, notif.RecipientID, err), err)
		}
		cancel()
	}
}
