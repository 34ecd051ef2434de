// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package messaging wraps the Watermill message.Publisher/message.Subscriber
abstraction with the envelope format and topic naming convention the rest
of this system depends on.

# Topic naming

A logical topic name (e.g. "sms_from_rapidpro") is namespaced per
deployment as projects/{project}/topics/{project}-{logical}, so that
several deployments can share one broker without their topics colliding.

# Envelope

Every message published through this package is wrapped as
{"payload": <value>} before being handed to the underlying publisher, and
unwrapped the same way on receipt — a thin but load-bearing convention,
since every consumer across both processes expects it.
*/
package messaging
