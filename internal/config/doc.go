// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package config provides layered configuration management for Vigil.
//
// Configuration is loaded with Koanf v2 from three layers, later layers
// overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (explicit mappings, see envTransformFunc)
//
// The loaded Config is validated before use and is immutable afterwards,
// making it safe for concurrent reads from every component.
//
// Monitor tunables in MonitorConfig double as fallback values for the
// settings table: the settings provider merges persisted overrides on top
// of these defaults at runtime.
package config
