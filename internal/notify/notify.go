// Package notify delivers short user-visible notices.
package notify

import (
	"fmt"
	"io"
	"sync"

	apperr "bakery-storefront/internal/xpkg/errors"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Notice struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(n Notice)
}

func Info(n Notifier, msg string) {
	if n != nil {
		n.Notify(Notice{Level: LevelInfo, Message: msg})
	}
}

// Failure shows msg, or the standard message for err's kind when msg is empty.
func Failure(n Notifier, msg string, err error) {
	if n == nil {
		return
	}
	if msg == "" {
		msg = apperr.UserMessage(err)
	}
	n.Notify(Notice{Level: LevelError, Message: msg})
}

// Console prints notices one per line.
type Console struct {
	w  io.Writer
	mu sync.Mutex
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.Level == LevelError {
		fmt.Fprintf(c.w, "! %s\n", n.Message)
		return
	}
	fmt.Fprintf(c.w, "* %s\n", n.Message)
}

// Recorder keeps every notice; tests read them back.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
