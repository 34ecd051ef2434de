// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package outbound implements the dispatcher that turns send_messages events
into gateway calls.

# Pipeline

Tokens are resolved to raw addresses through the identity map (a single
missing token fails the whole job), addresses that don't contain the
literal tel:+ substring are dropped (the gateway is known to misbehave on
them), the remainder is split into consecutive groups of at most 100
preserving order, and each group is sent once per message text, in listed
order, through the shared gateway.

# Retry / halt machine

A transient gateway failure records a timestamp in the dispatcher's
FailureWindow and is retried on a fixed, deliberately slow schedule — slow
enough that an operator can intervene before the gateway's lie about
delivery turns into a spam incident. A retry is only attempted while the
group is small, the local retry budget remains, and the failure window
isn't already saturated; otherwise the error propagates. A bad-request
error never retries.

# Acknowledgement

The dispatcher is wired into a Sequencer and run through a Watermill
no-publisher router handler, so a nil return acks the message and any
returned error nacks it — and, per the Sequencer's fail-stop contract, nacks
every message behind it until the loop is restarted.
*/
package outbound
