// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package identitymap provides a bijective table between de-identified UUIDs
and the underlying contact data (phone numbers, RapidPro contact UUIDs)
they stand in for.

# Overview

Every value that crosses the pub/sub boundary is de-identified first: the
bridge never publishes a phone number, only the UUID that maps to it. The
table is transactionally consistent (backed by BadgerDB) and bijective — a
given piece of data always resolves to the same UUID, and a UUID always
resolves back to the same data.

# Caching

Resolve and ResolveBatch first consult an in-memory cache populated by a
one-time, best-effort full scan at startup (Warm). A cache miss falls
through to a BadgerDB transaction that looks up the existing mapping or
creates a new one atomically — the get-or-create is never split across two
round trips, so concurrent resolutions of the same data can never mint two
different UUIDs for it.

# Thread Safety

All exported methods are safe for concurrent use.
*/
package identitymap
