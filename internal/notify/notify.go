package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Style tells the presenter how to render a notification.
type Style string

const (
	StyleSuccess Style = "success"
	StyleFailure Style = "failure"
)

// Notification is a transient, user-facing message.
type Notification struct {
	Style   Style  `json:"style"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success builds a success notification.
func Success(title string) Notification {
	return Notification{Style: StyleSuccess, Title: title}
}

// Failure builds a failure notification with an optional detail message.
func Failure(title, message string) Notification {
	return Notification{Style: StyleFailure, Title: title, Message: message}
}

// WriterNotifier prints notifications as single lines, the CLI presenter.
type WriterNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterNotifier creates a notifier writing to out.
func NewWriterNotifier(out io.Writer) *WriterNotifier {
	return &WriterNotifier{out: out}
}

func (w *WriterNotifier) Notify(_ context.Context, n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()

	mark := "✓"
	if n.Style == StyleFailure {
		mark = "✗"
	}
	if n.Message != "" {
		fmt.Fprintf(w.out, "%s %s: %s\n", mark, n.Title, n.Message)
		return
	}
	fmt.Fprintf(w.out, "%s %s\n", mark, n.Title)
}

// LogNotifier forwards notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Style == StyleFailure {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Title, slog.String("style", string(n.Style)), slog.String("message", n.Message))
}

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notification) {}

// FailuresOnly forwards failure notifications to n and drops the rest.
func FailuresOnly(n Notifier) Notifier {
	return failuresOnly{n}
}

type failuresOnly struct {
	next Notifier
}

func (f failuresOnly) Notify(ctx context.Context, n Notification) {
	if n.Style == StyleFailure {
		f.next.Notify(ctx, n)
	}
}
