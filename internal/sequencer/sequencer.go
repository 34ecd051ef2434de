// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package sequencer

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/larksystems/nook-open-infrastructure/internal/logging"
	"github.com/larksystems/nook-open-infrastructure/internal/metrics"
)

// DefaultFailPause is how long Handle pauses after a handler error before
// it will accept the next message, preventing a wedged downstream
// dependency from turning into a hot retry loop.
const DefaultFailPause = 2 * time.Second

// HandlerFunc processes one message to completion. A non-nil return value
// nacks the message and is recorded as LastError.
type HandlerFunc func(msg *message.Message) error

// Sequencer serializes handler invocation across however many goroutines
// call Handle concurrently, guaranteeing messages are handled in the order
// they were enqueued.
type Sequencer struct {
	topic     string
	handler   HandlerFunc
	failPause time.Duration

	queueMu sync.Mutex
	queue   []*message.Message

	processingMu sync.Mutex

	lastErrMu sync.RWMutex
	lastErr   error
}

// New creates a Sequencer that serializes calls to handler. topic is used
// only to label metrics.
func New(topic string, handler HandlerFunc) *Sequencer {
	return &Sequencer{
		topic:     topic,
		handler:   handler,
		failPause: DefaultFailPause,
	}
}

// Handle implements message.NoPublishHandlerFunc, making a Sequencer usable
// directly as a Watermill router handler. It enqueues msg, then — once it
// holds the processing lock — dequeues and handles whatever message is now
// at the head of the queue. That message is not necessarily msg: under
// concurrent delivery, another goroutine's Handle call may have already
// claimed msg and left an earlier message for this call to process. Either
// way, messages are always handled in arrival order and never by more than
// one goroutine at a time.
func (s *Sequencer) Handle(msg *message.Message) error {
	s.queueMu.Lock()
	s.queue = append(s.queue, msg)
	s.queueMu.Unlock()

	s.processingMu.Lock()
	defer s.processingMu.Unlock()

	s.queueMu.Lock()
	if len(s.queue) == 0 {
		s.queueMu.Unlock()
		return nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	depth := len(s.queue)
	s.queueMu.Unlock()

	metrics.SequencerQueueDepth.WithLabelValues(s.topic).Set(float64(depth))

	if prior := s.LastError(); prior != nil {
		metrics.SequencerMessagesNacked.WithLabelValues(s.topic).Inc()
		logging.Ctx(next.Context()).Error().
			Err(prior).
			Str("topic", s.topic).
			Str("message_uuid", next.UUID).
			Msg("sequencer: fail-stopped after earlier handler error, nacking without invoking handler")
		return prior
	}

	err := s.invoke(next)
	if err != nil {
		s.setLastError(err)
		metrics.SequencerMessagesNacked.WithLabelValues(s.topic).Inc()
		logging.Ctx(next.Context()).Error().
			Err(err).
			Str("topic", s.topic).
			Str("message_uuid", next.UUID).
			Msg("sequencer: handler failed, pausing before accepting further work")
		time.Sleep(s.failPause)
		return err
	}

	metrics.SequencerMessagesProcessed.WithLabelValues(s.topic).Inc()
	return nil
}

// invoke runs the handler, converting a panic into an error so a single
// malformed message can't take down the supervising goroutine.
func (s *Sequencer) invoke(msg *message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sequencer: handler panic: %v", r)
		}
	}()
	return s.handler(msg)
}

// LastError returns the most recent handler error, or nil if every message
// processed so far has succeeded. Other loops (notably the inbound poller's
// idle wait) poll this to detect a stalled sibling loop without needing a
// direct channel between them.
func (s *Sequencer) LastError() error {
	s.lastErrMu.RLock()
	defer s.lastErrMu.RUnlock()
	return s.lastErr
}

func (s *Sequencer) setLastError(err error) {
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
}

// QueueDepth returns the number of messages currently queued behind the
// processing lock.
func (s *Sequencer) QueueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}
