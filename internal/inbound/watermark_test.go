// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package inbound

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWatermarkMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	_, err := LoadWatermark(path)
	assert.ErrorIs(t, err, ErrMissingWatermark)
}

func TestLoadWatermarkZeroTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")
	require.NoError(t, SaveWatermark(path, time.Time{}))

	_, err := LoadWatermark(path)
	assert.ErrorIs(t, err, ErrMissingWatermark)
}

func TestSaveThenLoadWatermarkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")
	want := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, SaveWatermark(path, want))

	got, err := LoadWatermark(path)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestSaveWatermarkOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark.json")
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, SaveWatermark(path, first))
	require.NoError(t, SaveWatermark(path, second))

	got, err := LoadWatermark(path)
	require.NoError(t, err)
	assert.True(t, second.Equal(got))
}
