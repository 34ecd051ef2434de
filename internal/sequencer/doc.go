// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package sequencer collapses concurrent message delivery into strictly
ordered, single-threaded handler invocation.

# Why

A pub/sub subscription can (and, under load, will) deliver messages to more
than one goroutine at once. The command router and the outbound dispatcher
both depend on processing messages in the order the broker delivered them —
an opinion mutation applied out of order silently corrupts a conversation,
and an outbound send applied out of order can message the wrong cohort.
Watermill's own handler concurrency knobs can't express this; a Sequencer
sits in front of the handler and enforces it directly.

# How

Every call to Process enqueues its message before contending for the
processing lock, then — once it holds the lock — dequeues and handles
whatever message is now at the head of the queue, which is not necessarily
the one it enqueued. This enqueue-before-lock, dequeue-under-lock ordering
means messages are always handled in arrival order even when multiple
goroutines call Process concurrently, and the handler itself never runs on
more than one goroutine at a time.

# Fail-stop

A handler error is fail-stop: the message is nacked, the error is recorded
and retrievable via LastError, and the sequencer pauses briefly before
accepting further work so that a wedged downstream dependency can't turn
into a hot retry loop.
*/
package sequencer
