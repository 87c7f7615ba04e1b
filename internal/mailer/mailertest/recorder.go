// Package mailertest provides an in-memory mailer.Sender for tests.
package mailertest

import (
	"context"
	"sync"
)

// Message is one recorded email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Recorder records sent messages. While Fail is set every send fails and
// nothing is recorded.
type Recorder struct {
	mu       sync.Mutex
	fail     bool
	messages []Message
}

func (r *Recorder) Send(_ context.Context, to, subject, htmlBody string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return false
	}
	r.messages = append(r.messages, Message{To: to, Subject: subject, Body: htmlBody})
	return true
}

// SetFail toggles delivery failure.
func (r *Recorder) SetFail(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message sent to to.
func (r *Recorder) Last(to string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].To == to {
			return r.messages[i], true
		}
	}
	return Message{}, false
}
