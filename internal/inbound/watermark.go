// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package inbound

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// ErrMissingWatermark is returned by LoadWatermark when the file is absent
// or empty; callers should treat this as a fatal startup error.
var ErrMissingWatermark = errors.New("inbound: missing or empty watermark file")

type watermarkFile struct {
	LastUpdateTime time.Time `json:"last_update_time"`
}

// LoadWatermark reads the persisted watermark from path. A missing or
// empty file is reported as ErrMissingWatermark rather than defaulted,
// since silently starting from "now" or "epoch" would be a policy
// decision this package isn't allowed to make.
func LoadWatermark(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, ErrMissingWatermark
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("inbound: read watermark file: %w", err)
	}
	if len(data) == 0 {
		return time.Time{}, ErrMissingWatermark
	}

	var wm watermarkFile
	if err := json.Unmarshal(data, &wm); err != nil {
		return time.Time{}, fmt.Errorf("inbound: parse watermark file: %w", err)
	}
	if wm.LastUpdateTime.IsZero() {
		return time.Time{}, ErrMissingWatermark
	}
	return wm.LastUpdateTime, nil
}

// SaveWatermark persists t to path atomically: the new content is written
// to a sibling temp file and renamed over path, so a crash mid-write never
// leaves a corrupt or partial watermark behind.
func SaveWatermark(path string, t time.Time) error {
	data, err := json.Marshal(watermarkFile{LastUpdateTime: t})
	if err != nil {
		return fmt.Errorf("inbound: marshal watermark: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("inbound: write watermark temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("inbound: rename watermark temp file: %w", err)
	}
	return nil
}

// EnsureDir creates the parent directory of path if it does not exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
