package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/model"
)

// SyncState represents the current state of the reminder poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of the last reminder run.
type SyncStatus struct {
	State   SyncState
	LastRun time.Time
	Error   error
}

// ReminderResultMsg is a tea.Msg sent when a reminder run completes.
type ReminderResultMsg struct {
	UserID        int64
	Created       []model.Notification
	Error         error
	DeliveryError error
}

// Generator creates the reminders that are due for a user.
type Generator interface {
	GenerateAppointmentReminders(ctx context.Context, userID int64) ([]model.Notification, error)
}

// Deliverer sends freshly created reminders outside the application.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, reminders []model.Notification) error
}

// runTimeout is the maximum time allowed for a single reminder run.
const runTimeout = 30 * time.Second

// Poller regenerates reminders for the logged-in user on a fixed interval
// while the application is open.
type Poller struct {
	gen       Generator
	deliverer Deliverer
	interval  time.Duration
	status    SyncStatus
	userID    int64
	resultCh  chan ReminderResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller running gen every interval. Intervals outside
// (0, model.MaxPollInterval] are clamped.
func New(gen Generator, interval time.Duration) *Poller {
	switch {
	case interval <= 0:
		interval = model.DefaultPollInterval
	case interval > model.MaxPollInterval:
		interval = model.MaxPollInterval
	}
	return &Poller{
		gen:       gen,
		interval:  interval,
		resultCh:  make(chan ReminderResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// SetDeliverer enables delivery of new reminders through d.
func (p *Poller) SetDeliverer(d Deliverer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliverer = d
}

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Watch switches the poller to userID and triggers an immediate run.
// A zero id pauses generation until the next Watch.
func (p *Poller) Watch(userID int64) tea.Cmd {
	p.mu.Lock()
	p.userID = userID
	p.mu.Unlock()

	if userID == 0 {
		return nil
	}
	return p.Refresh()
}

// Start returns a tea.Cmd that starts the polling goroutine and
// subscribes to results. The returned command waits on the result
// channel and returns ReminderResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate run for the watched user.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A run is already pending.
	}
	return nil
}

// Status returns the state of the last reminder run.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.run()
		case <-p.triggerCh:
			p.run()
		}
	}
}

// run generates reminders for the watched user, delivers the new ones and
// reports the outcome on the result channel.
func (p *Poller) run() {
	p.mu.Lock()
	userID := p.userID
	deliverer := p.deliverer
	p.mu.Unlock()

	if userID == 0 {
		return
	}

	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	created, err := p.gen.GenerateAppointmentReminders(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("generating reminders")
		p.setStatus(SyncError, err)
		p.sendResult(ReminderResultMsg{UserID: userID, Created: created, Error: err})
		return
	}

	msg := ReminderResultMsg{UserID: userID, Created: created}
	if deliverer != nil && len(created) > 0 {
		if err := deliverer.Deliver(ctx, userID, created); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("delivering reminders")
			msg.DeliveryError = err
		}
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(msg)
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state != SyncRunning {
		p.status.LastRun = time.Now()
	}
}

// sendResult sends a ReminderResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg ReminderResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next reminder
// result. Call it after handling a ReminderResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
