// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

// Package bootstrap reads the two credential shapes cmd/sms-bridge needs
// before it can talk to RapidPro: the crypto token file and the RapidPro
// connection blob held in the credentials bucket. Concrete cloud-storage
// and KMS SDKs are left to the deployment environment; this package reads
// both shapes from local paths.
package bootstrap
