// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// DefaultConfigPaths lists the paths where a config file is searched, in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nook-bridge/config.yaml",
	"/etc/nook-bridge/config.yml",
}

// ConfigPathEnvVar overrides the search in DefaultConfigPaths.
const ConfigPathEnvVar = "CONFIG_PATH"

// BridgeConfig holds everything cmd/sms-bridge needs to run both the
// inbound poller and the outbound dispatcher.
type BridgeConfig struct {
	// CryptoTokenFile is the path to the RapidPro API token file. The file
	// is read as plaintext; nothing in this module decrypts it.
	CryptoTokenFile string `koanf:"crypto_token_file"`

	// ProjectName identifies this deployment; it is the basis for the
	// pub/sub topic path projects/{project}/topics/{project}-{logical}.
	ProjectName string `koanf:"project_name"`

	// CredentialsBucketName is the storage bucket holding the RapidPro
	// connection config downloaded at startup.
	CredentialsBucketName string `koanf:"credentials_bucket_name"`

	// LastUpdateTokenPath is where the inbound poller's watermark file is
	// read from and written to.
	LastUpdateTokenPath string `koanf:"last_update_token_path"`

	// GatewayTimeout is loaded from defaults, config file and environment,
	// but it is not passed to the gateway client: every RapidPro API call
	// uses gateway.DefaultTimeout (10 minutes) regardless of this value.
	GatewayTimeout time.Duration `koanf:"gateway_timeout"`

	// PollInterval is how long the inbound poller idles between successful
	// poll cycles. An exhausted retry schedule ends the poll loop instead.
	PollInterval time.Duration `koanf:"poll_interval"`

	// IdentityMapPath is the BadgerDB directory backing the identity map.
	IdentityMapPath string `koanf:"identitymap_path"`

	Logging LoggingConfig `koanf:"logging"`
}

// RouterConfig holds everything cmd/command-router needs.
type RouterConfig struct {
	// CredentialFilePath is the single positional argument: the path to
	// the pub/sub service account credential file.
	CredentialFilePath string `koanf:"credential_file_path"`

	// ProjectName identifies this deployment, same role as in BridgeConfig.
	ProjectName string `koanf:"project_name"`

	// RouterEnabled turns on the opinion reactor dispatch table. When
	// false the router runs in relay-only mode: send commands are still
	// republished as send_messages, while add_opinion and sms_from_rapidpro
	// are acked without touching the conversation cache.
	RouterEnabled bool `koanf:"router_enabled"`

	// IdentityMapPath is the BadgerDB directory backing the identity map.
	IdentityMapPath string `koanf:"identitymap_path"`

	// ConversationStorePath is the BadgerDB directory backing the command
	// router's conversation cache and its dirty-set flush.
	ConversationStorePath string `koanf:"conversation_store_path"`

	// CommandTopic is the logical name of the topic the router consumes
	// commands from.
	CommandTopic string `koanf:"command_topic"`

	// OutgoingTopic is the logical name of the topic send_messages events
	// are republished to.
	OutgoingTopic string `koanf:"outgoing_topic"`

	Logging LoggingConfig `koanf:"logging"`
}

// LoggingConfig mirrors logging.Config's fields for layered loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		GatewayTimeout:  10 * time.Minute,
		PollInterval:    30 * time.Second,
		IdentityMapPath: "/data/identitymap",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

func defaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RouterEnabled:         true,
		IdentityMapPath:       "/data/identitymap",
		ConversationStorePath: "/data/conversations",
		CommandTopic:          "sms-channel-topic",
		OutgoingTopic:         "sms-outgoing",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadBridgeConfig layers defaults, an optional config file, environment
// variables, and finally the four required CLI flags (later sources
// override earlier ones). args should be the program's os.Args[1:].
func LoadBridgeConfig(args []string) (*BridgeConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultBridgeConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load bridge defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", bridgeEnvTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	fs := flag.NewFlagSet("sms-bridge", flag.ContinueOnError)
	cryptoTokenFile := fs.String("crypto-token-file", "", "path to the RapidPro API token file")
	projectName := fs.String("project-name", "", "deployment project name")
	credentialsBucket := fs.String("credentials-bucket-name", "", "storage bucket holding the RapidPro connection config")
	lastUpdateTokenPath := fs.String("last-update-token-path", "", "path to the inbound watermark file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *cryptoTokenFile != "" {
		_ = k.Set("crypto_token_file", *cryptoTokenFile)
	}
	if *projectName != "" {
		_ = k.Set("project_name", *projectName)
	}
	if *credentialsBucket != "" {
		_ = k.Set("credentials_bucket_name", *credentialsBucket)
	}
	if *lastUpdateTokenPath != "" {
		_ = k.Set("last_update_token_path", *lastUpdateTokenPath)
	}

	cfg := &BridgeConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bridge configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bridge configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects a BridgeConfig missing any of the four fields required
// by cmd/sms-bridge.
func (c *BridgeConfig) Validate() error {
	var missing []string
	if c.CryptoTokenFile == "" {
		missing = append(missing, "--crypto-token-file")
	}
	if c.ProjectName == "" {
		missing = append(missing, "--project-name")
	}
	if c.CredentialsBucketName == "" {
		missing = append(missing, "--credentials-bucket-name")
	}
	if c.LastUpdateTokenPath == "" {
		missing = append(missing, "--last-update-token-path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadRouterConfig layers defaults, environment variables, and the single
// positional credential-file argument.
func LoadRouterConfig(args []string) (*RouterConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultRouterConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load router defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", routerEnvTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if len(args) > 0 && args[0] != "" {
		_ = k.Set("credential_file_path", args[0])
	}

	cfg := &RouterConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal router configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("router configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects a RouterConfig missing its one required argument.
func (c *RouterConfig) Validate() error {
	if c.CredentialFilePath == "" {
		return fmt.Errorf("missing required argument: credential file path")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var bridgeEnvMappings = map[string]string{
	"crypto_token_file":       "crypto_token_file",
	"project_name":            "project_name",
	"credentials_bucket_name": "credentials_bucket_name",
	"last_update_token_path":  "last_update_token_path",
	"gateway_timeout":         "gateway_timeout",
	"poll_interval":           "poll_interval",
	"identitymap_path":        "identitymap_path",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"log_caller":              "logging.caller",
}

func bridgeEnvTransform(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := bridgeEnvMappings[key]; ok {
		return mapped
	}
	return ""
}

var routerEnvMappings = map[string]string{
	"credential_file_path":    "credential_file_path",
	"project_name":            "project_name",
	"router_enabled":          "router_enabled",
	"identitymap_path":        "identitymap_path",
	"conversation_store_path": "conversation_store_path",
	"command_topic":           "command_topic",
	"outgoing_topic":          "outgoing_topic",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"log_caller":              "logging.caller",
}

func routerEnvTransform(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := routerEnvMappings[key]; ok {
		return mapped
	}
	return ""
}
