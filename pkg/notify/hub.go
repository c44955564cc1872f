package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

// Event types published to hub subscribers.
const (
	EventDialogOpen      = "dialog.open"
	EventDialogClose     = "dialog.close"
	EventSnackBarOpen    = "snackbar.open"
	EventSnackBarDismiss = "snackbar.dismiss"
)

// Snackbar dismissal reasons.
const (
	DismissedByAction  = "action"
	DismissedByTimeout = "timeout"
	DismissedByClose   = "closed"
)

var (
	// ErrUnknownDialog means the dialog is not open (never existed or already closed).
	ErrUnknownDialog = errors.New("notify: dialog not found or already closed")
	// ErrUnknownSnackBar means the snackbar is not showing.
	ErrUnknownSnackBar = errors.New("notify: snackbar not found or already dismissed")
)

// Event is what a browser session receives over its event stream.
type Event struct {
	Type        string     `json:"type"`
	ID          string     `json:"id"`
	Kind        DialogKind `json:"kind,omitempty"`
	Title       string     `json:"title,omitempty"`
	Message     string     `json:"message,omitempty"`
	Placeholder string     `json:"placeholder,omitempty"`
	Action      string     `json:"action,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	Result      *bool      `json:"result,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// SnackBar is a handle on an open snackbar.
type SnackBar struct {
	ID       string
	Message  string
	Action   string
	Duration time.Duration

	done   chan struct{}
	once   sync.Once
	reason string
	timer  clock.Timer
	seq    uint64
}

func newSnackBar(req SnackBarRequest) *SnackBar {
	return &SnackBar{
		ID:       uuid.NewString(),
		Message:  req.Message,
		Action:   req.Action,
		Duration: req.Duration,
		done:     make(chan struct{}),
	}
}

func (s *SnackBar) dismiss(reason string) bool {
	dismissed := false
	s.once.Do(func() {
		s.reason = reason
		close(s.done)
		dismissed = true
	})
	return dismissed
}

// Dismissed is closed once the snackbar is gone.
func (s *SnackBar) Dismissed() <-chan struct{} { return s.done }

// Reason returns how the snackbar was dismissed, empty while it is showing.
func (s *SnackBar) Reason() string {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

type pendingDialog struct {
	req    DialogRequest
	future *Future
	seq    uint64
}

const subscriberBuffer = 32

// Hub is the per-session dialog and snackbar surface. It implements
// DialogOpener and SnackBarOpener and fans events out to subscribers.
type Hub struct {
	id    string
	clock clock.WithDelayedExecution

	mu        sync.Mutex
	dialogs   map[string]*pendingDialog
	snackbars map[string]*SnackBar
	subs      map[int]chan Event
	nextSub   int
	// opened numbers dialogs and snackbars in opening order for replay
	opened uint64
	closed    bool
}

// NewHub creates a hub. A nil clock uses the real clock.
func NewHub(id string, clk clock.WithDelayedExecution) *Hub {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Hub{
		id:        id,
		clock:     clk,
		dialogs:   make(map[string]*pendingDialog),
		snackbars: make(map[string]*SnackBar),
		subs:      make(map[int]chan Event),
	}
}

// ID returns the session identifier.
func (h *Hub) ID() string { return h.id }

// OpenDialog registers a dialog, announces it and returns its future. The
// dialog is dismissed if ctx ends before the client closes it.
func (h *Hub) OpenDialog(ctx context.Context, req DialogRequest) *Future {
	f := newFuture(uuid.NewString())

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		f.resolve(Dismissed)
		return f
	}
	h.opened++
	h.dialogs[f.id] = &pendingDialog{req: req, future: f, seq: h.opened}
	h.publishLocked(dialogOpenEvent(f.id, req))
	h.mu.Unlock()

	log.Debugf("[notify] session %s opened %s dialog %s", h.id, req.Kind, f.id)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-f.Done():
			case <-ctx.Done():
				if err := h.CloseDialog(f.id, Dismissed); err == nil {
					log.Debugf("[notify] dialog %s dismissed: %v", f.id, ctx.Err())
				}
			}
		}()
	}
	return f
}

// CloseDialog resolves an open dialog with the client's result.
func (h *Hub) CloseDialog(id string, result DialogResult) error {
	h.mu.Lock()
	d, ok := h.dialogs[id]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownDialog
	}
	delete(h.dialogs, id)
	h.publishLocked(Event{Type: EventDialogClose, ID: id, Result: result.Value})
	h.mu.Unlock()

	d.future.resolve(result)
	return nil
}

// OpenSnackBar shows a snackbar and arms its auto-dismiss timer.
func (h *Hub) OpenSnackBar(req SnackBarRequest) *SnackBar {
	if req.Duration <= 0 {
		req.Duration = DefaultSnackBarDuration
	}
	if req.Action == "" {
		req.Action = DefaultSnackBarAction
	}
	sb := newSnackBar(req)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sb.dismiss(DismissedByClose)
		return sb
	}
	h.opened++
	sb.seq = h.opened
	h.snackbars[sb.ID] = sb
	h.publishLocked(Event{
		Type:       EventSnackBarOpen,
		ID:         sb.ID,
		Message:    sb.Message,
		Action:     sb.Action,
		DurationMS: sb.Duration.Milliseconds(),
	})
	h.mu.Unlock()

	// Armed outside h.mu: the callback takes h.mu.
	timer := h.clock.AfterFunc(sb.Duration, func() {
		_ = h.dismissSnackBar(sb.ID, DismissedByTimeout)
	})
	h.mu.Lock()
	sb.timer = timer
	h.mu.Unlock()
	return sb
}

// DismissSnackBar handles the snackbar's action button.
func (h *Hub) DismissSnackBar(id string) error {
	return h.dismissSnackBar(id, DismissedByAction)
}

func (h *Hub) dismissSnackBar(id, reason string) error {
	h.mu.Lock()
	sb, ok := h.snackbars[id]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownSnackBar
	}
	delete(h.snackbars, id)
	timer := sb.timer
	h.publishLocked(Event{Type: EventSnackBarDismiss, ID: id, Reason: reason})
	h.mu.Unlock()

	if timer != nil && reason != DismissedByTimeout {
		timer.Stop()
	}
	sb.dismiss(reason)
	return nil
}

// Subscribe returns a channel of events, starting with a replay of every
// dialog and snackbar that is currently open, and a cancel func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer+len(h.dialogs)+len(h.snackbars))
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	for _, ev := range h.replayLocked() {
		ch <- ev
	}

	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Subscribers returns the number of attached event streams.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// OpenDialogs returns the number of dialogs waiting for the user.
func (h *Hub) OpenDialogs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dialogs)
}

// Close dismisses every open dialog and snackbar and detaches subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	dialogs := h.dialogs
	snackbars := h.snackbars
	h.dialogs = make(map[string]*pendingDialog)
	h.snackbars = make(map[string]*SnackBar)
	var timers []clock.Timer
	for _, sb := range snackbars {
		if sb.timer != nil {
			timers = append(timers, sb.timer)
		}
	}
	for id, c := range h.subs {
		delete(h.subs, id)
		close(c)
	}
	h.mu.Unlock()

	for _, d := range dialogs {
		d.future.resolve(Dismissed)
	}
	for _, t := range timers {
		t.Stop()
	}
	for _, sb := range snackbars {
		sb.dismiss(DismissedByClose)
	}
	if len(dialogs) > 0 {
		log.Infof("[notify] session %s closed with %d open dialog(s)", h.id, len(dialogs))
	}
}

// replayLocked returns open events for every open dialog and snackbar in the
// order they were opened. h.mu must be held.
func (h *Hub) replayLocked() []Event {
	type opened struct {
		seq uint64
		ev  Event
	}
	all := make([]opened, 0, len(h.dialogs)+len(h.snackbars))
	for id, d := range h.dialogs {
		all = append(all, opened{d.seq, dialogOpenEvent(id, d.req)})
	}
	for _, sb := range h.snackbars {
		all = append(all, opened{sb.seq, Event{
			Type:       EventSnackBarOpen,
			ID:         sb.ID,
			Message:    sb.Message,
			Action:     sb.Action,
			DurationMS: sb.Duration.Milliseconds(),
		}})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]Event, len(all))
	for i, o := range all {
		out[i] = o.ev
	}
	return out
}

// publishLocked delivers ev to every subscriber without blocking. h.mu must be held.
func (h *Hub) publishLocked(ev Event) {
	for id, c := range h.subs {
		select {
		case c <- ev:
		default:
			log.Warnf("[notify] session %s subscriber %d is slow, dropped %s %s", h.id, id, ev.Type, ev.ID)
		}
	}
}

func dialogOpenEvent(id string, req DialogRequest) Event {
	return Event{
		Type:        EventDialogOpen,
		ID:          id,
		Kind:        req.Kind,
		Title:       req.Title,
		Message:     req.Message,
		Placeholder: req.Placeholder,
	}
}

var (
	_ DialogOpener   = (*Hub)(nil)
	_ SnackBarOpener = (*Hub)(nil)
)
