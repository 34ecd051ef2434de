// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// ErrEmptyToken is returned when a crypto token file exists but is blank.
var ErrEmptyToken = errors.New("bootstrap: crypto token file is empty")

// rapidProConfigBlob is the well-known object name read from the
// credentials bucket.
const rapidProConfigBlob = "rapidpro_config.json"

// RapidProConnection is the `{"domain":…, "token":…}` blob loaded from
// the configured credentials bucket.
type RapidProConnection struct {
	Domain string `json:"domain"`
	Token  string `json:"token"`
}

// LoadCryptoToken reads and trims the RapidPro API token from path. The
// token is expected to already be decrypted onto local disk by whatever
// process populates CryptoTokenFile; this function only validates it is
// non-empty.
func LoadCryptoToken(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("bootstrap: read crypto token file %s: %w", path, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("bootstrap: %s: %w", path, ErrEmptyToken)
	}
	return token, nil
}

// FetchRapidProConnection reads the RapidPro connection blob from
// bucket. bucket is treated as a local directory holding
// rapidpro_config.json, standing in for a real object-storage client.
func FetchRapidProConnection(bucket string) (*RapidProConnection, error) {
	path := filepath.Join(bucket, rapidProConfigBlob)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read rapidpro config from bucket %s: %w", bucket, err)
	}

	var conn RapidProConnection
	if err := json.Unmarshal(raw, &conn); err != nil {
		return nil, fmt.Errorf("bootstrap: decode rapidpro config: %w", err)
	}
	if conn.Domain == "" || conn.Token == "" {
		return nil, fmt.Errorf("bootstrap: rapidpro config missing domain or token")
	}
	return &conn, nil
}
