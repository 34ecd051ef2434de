// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

/*
Package config loads the two configuration surfaces this module exposes,
layered with Koanf v2, each later source overriding the former. The bridge
layers defaults, then a config file, then environment variables, then CLI
flags. The command router layers defaults, then environment variables,
then its positional argument; it reads no config file.

# Bridge configuration

cmd/sms-bridge requires four flags: --crypto-token-file, --project-name,
--credentials-bucket-name, --last-update-token-path. LoadBridgeConfig
parses these with pflag and layers them over environment variables (same
names, upper-cased, underscored), the config file and defaults via koanf.

# Command-router configuration

cmd/command-router takes a single positional argument: the credential file
path. LoadRouterConfig layers that one value over environment variables
and defaults.

# Thread safety

Both Config types are immutable after LoadBridgeConfig or LoadRouterConfig
returns.
*/
package config
