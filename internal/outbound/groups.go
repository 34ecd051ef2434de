// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package outbound

import "strings"

// AddressPrefix is the literal substring a raw address must contain to be
// considered sendable. The gateway is known to crash on addresses that
// lack it.
const AddressPrefix = "tel:+"

// MaxGroupSize is the largest number of recipients sent in a single
// gateway call.
const MaxGroupSize = 100

// FilterAddresses returns the subset of addresses containing AddressPrefix,
// preserving order, along with the addresses dropped.
func FilterAddresses(addresses []string) (kept, dropped []string) {
	for _, addr := range addresses {
		if strings.Contains(addr, AddressPrefix) {
			kept = append(kept, addr)
		} else {
			dropped = append(dropped, addr)
		}
	}
	return kept, dropped
}

// SplitGroups partitions addresses into consecutive groups of at most
// MaxGroupSize, preserving order. The union of the returned groups equals
// addresses exactly.
func SplitGroups(addresses []string) [][]string {
	if len(addresses) == 0 {
		return nil
	}

	var groups [][]string
	for start := 0; start < len(addresses); start += MaxGroupSize {
		end := start + MaxGroupSize
		if end > len(addresses) {
			end = len(addresses)
		}
		group := make([]string, end-start)
		copy(group, addresses[start:end])
		groups = append(groups, group)
	}
	return groups
}
