package notify

import (
	"context"
	"time"
)

// Dialog titles.
const (
	TitleError        = "Error"
	TitleConfirmation = "Confirmation"
)

// DefaultSnackBarAction is the label of the snackbar's dismiss button.
const DefaultSnackBarAction = "OK"

// DefaultSnackBarDuration is how long a snackbar stays before it dismisses itself.
const DefaultSnackBarDuration = 2000 * time.Millisecond

// DialogKind selects how the client renders a dialog.
type DialogKind string

const (
	KindAlert        DialogKind = "alert"
	KindConfirmation DialogKind = "confirmation"
	KindInput        DialogKind = "input"
)

// DialogRequest describes a modal dialog to open.
type DialogRequest struct {
	Kind        DialogKind `json:"kind"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Placeholder string     `json:"placeholder,omitempty"`
}

// SnackBarRequest describes a transient notification.
type SnackBarRequest struct {
	Message  string        `json:"message"`
	Action   string        `json:"action"`
	Duration time.Duration `json:"-"`
}

// DialogOpener is the modal-dialog primitive. The returned future resolves
// when the dialog closes; if ctx ends first the dialog is dismissed.
type DialogOpener interface {
	OpenDialog(ctx context.Context, req DialogRequest) *Future
}

// SnackBarOpener is the transient-notification primitive.
type SnackBarOpener interface {
	OpenSnackBar(req SnackBarRequest) *SnackBar
}

// Notifier is what page view models and actions use to talk to the user.
type Notifier interface {
	ShowError(message string)
	ShowSnackBar(message string)
	ShowConfirmation(ctx context.Context, message string) *Future
	ShowInput(ctx context.Context, title, message, placeholder string) *InputFuture
}

// Helper implements Notifier on top of the dialog and snackbar primitives.
type Helper struct {
	dialogs   DialogOpener
	snackbars SnackBarOpener
	duration  time.Duration
	action    string
}

// Option configures a Helper.
type Option func(*Helper)

// WithSnackBarDuration overrides the snackbar auto-dismiss delay.
func WithSnackBarDuration(d time.Duration) Option {
	return func(h *Helper) {
		if d > 0 {
			h.duration = d
		}
	}
}

// WithSnackBarAction overrides the snackbar button label.
func WithSnackBarAction(label string) Option {
	return func(h *Helper) {
		if label != "" {
			h.action = label
		}
	}
}

// NewHelper builds a Helper. Both primitives are required.
func NewHelper(dialogs DialogOpener, snackbars SnackBarOpener, opts ...Option) *Helper {
	h := &Helper{
		dialogs:   dialogs,
		snackbars: snackbars,
		duration:  DefaultSnackBarDuration,
		action:    DefaultSnackBarAction,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ShowError opens an "Error" dialog and returns without waiting for it.
func (h *Helper) ShowError(message string) {
	h.dialogs.OpenDialog(context.Background(), DialogRequest{
		Kind:    KindAlert,
		Title:   TitleError,
		Message: message,
	})
}

// ShowSnackBar opens a snackbar that dismisses itself after the configured
// duration unless its action is pressed first.
func (h *Helper) ShowSnackBar(message string) {
	h.snackbars.OpenSnackBar(SnackBarRequest{
		Message:  message,
		Action:   h.action,
		Duration: h.duration,
	})
}

// ShowConfirmation opens a "Confirmation" dialog. The future resolves with
// whatever the dialog reports on close.
func (h *Helper) ShowConfirmation(ctx context.Context, message string) *Future {
	return h.dialogs.OpenDialog(ctx, DialogRequest{
		Kind:    KindConfirmation,
		Title:   TitleConfirmation,
		Message: message,
	})
}

// ShowInput opens an input dialog.
func (h *Helper) ShowInput(ctx context.Context, title, message, placeholder string) *InputFuture {
	return &InputFuture{h.dialogs.OpenDialog(ctx, DialogRequest{
		Kind:        KindInput,
		Title:       title,
		Message:     message,
		Placeholder: placeholder,
	})}
}

var _ Notifier = (*Helper)(nil)
