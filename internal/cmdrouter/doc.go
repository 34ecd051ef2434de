// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package cmdrouter implements the command router: the consumer of the
closed, fixed action set that drives outbound sends and conversation-level
bookkeeping.

# Actions

Four actions exist and no others: send_to_multi_ids and
send_messages_to_ids both republish a send_messages event for the
outbound dispatcher; add_opinion dispatches to one of nine fixed
namespace reactors that mutate the conversation cache; sms_from_rapidpro
feeds an inbound message into the same cache under the sms_raw_msg
reactor. Any other action, and any add_opinion namespace outside the
fixed set, is a fatal error — there is no silent ignore path.

# Conversation cache

Reactors operate on an in-memory, read-through cache of conversation
documents. Every mutation marks its conversation id dirty; at the end of
handling one command the dirty set is flushed to the store. The whole
load-mutate-flush sequence for a command runs under one lock, so no two
reactors ever observe a partially flushed cache.

# Router-enabled vs relay-only

When disabled, add_opinion and sms_from_rapidpro become no-ops that ack
without touching the cache or the underlying store — a configuration
knob standing in for what upstream ran as two separate binaries differing
only in whether store wiring was present.
*/
package cmdrouter
