// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package inbound implements the poller that pulls RapidPro flow runs and
republishes them as pub/sub events.

# Loop

Each cycle reads the on-disk watermark, fetches every run modified at or
after it through the shared gateway, de-identifies each run's contact
through the identity map, publishes one sms_from_rapidpro event per run,
then persists the watermark captured before the fetch — not after — so
that a run landing at the exact boundary instant is seen again on the next
cycle rather than lost. Duplicate delivery is the accepted cost of that
choice; downstream consumers must tolerate it.

# Retries

Transient gateway errors retry on a fixed backoff schedule. Once the
schedule is exhausted the error propagates and Serve returns it, which the
supervisor tree treats as a service failure subject to its own restart
policy.

# Watermark persistence

The watermark file is replaced with write-then-rename so a crash between
writes never leaves a partially written file behind. A missing or empty
file is a fatal configuration error at startup — there is no sane default
for "how far back should this poll".
*/
package inbound
