// Package notify opens modal dialogs and transient snackbars for a console
// session and hands back futures that resolve when the user closes them.
package notify

import (
	"context"
	"sync"
)

// DialogResult is the value a dialog reports when it closes. A nil Value
// means the dialog was dismissed without a choice.
type DialogResult struct {
	Value *bool  `json:"result"`
	Input string `json:"value,omitempty"`
}

// Dismissed is the result of a dialog closed without a choice.
var Dismissed = DialogResult{}

// Choice returns a result carrying an explicit true or false.
func Choice(v bool) DialogResult {
	return DialogResult{Value: &v}
}

// Confirmed reports an explicit true. False and undefined both mean
// "do not proceed".
func (r DialogResult) Confirmed() bool {
	return r.Value != nil && *r.Value
}

// Undefined reports whether the dialog closed without a choice.
func (r DialogResult) Undefined() bool {
	return r.Value == nil
}

func (r DialogResult) String() string {
	switch {
	case r.Value == nil:
		return "undefined"
	case *r.Value:
		return "true"
	default:
		return "false"
	}
}

// Future resolves exactly once with a DialogResult.
type Future struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result DialogResult
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// Resolved returns a future that is already complete. Openers that cannot
// show a dialog use it to answer immediately.
func Resolved(id string, r DialogResult) *Future {
	f := newFuture(id)
	f.resolve(r)
	return f
}

// ID is the dialog identifier the client uses to close it.
func (f *Future) ID() string { return f.id }

// resolve completes the future; later calls are ignored and return false.
func (f *Future) resolve(r DialogResult) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the dialog has closed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the result without blocking; ok is false while pending.
func (f *Future) Result() (DialogResult, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return DialogResult{}, false
	}
}

// Wait blocks until the dialog closes or ctx is done.
func (f *Future) Wait(ctx context.Context) (DialogResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return DialogResult{}, ctx.Err()
	}
}

// InputFuture resolves with the text entered into an input dialog.
type InputFuture struct {
	*Future
}

// Value waits for the dialog and returns the entered text. ok is false when
// the dialog was cancelled or dismissed.
func (f *InputFuture) Value(ctx context.Context) (value string, ok bool, err error) {
	r, err := f.Wait(ctx)
	if err != nil {
		return "", false, err
	}
	if !r.Confirmed() {
		return "", false, nil
	}
	return r.Input, true, nil
}
