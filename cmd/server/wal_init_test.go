// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build wal

package main

import (
	"testing"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/wal"
)

func TestSpillConfig(t *testing.T) {
	t.Run("path override applied", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.WAL.Enabled = true
		cfg.WAL.Path = "/data/spill"

		walCfg := spillConfig(cfg)

		if !walCfg.Enabled {
			t.Error("Enabled should carry over from config")
		}
		if walCfg.Path != "/data/spill" {
			t.Errorf("Path = %q, want /data/spill", walCfg.Path)
		}

		def := wal.DefaultConfig()
		if walCfg.SyncWrites != def.SyncWrites {
			t.Error("SyncWrites should keep the default")
		}
		if walCfg.MaxDrainAttempts != def.MaxDrainAttempts {
			t.Error("MaxDrainAttempts should keep the default")
		}
	})

	t.Run("empty path keeps default", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.WAL.Enabled = true

		if got, want := spillConfig(cfg).Path, wal.DefaultConfig().Path; got != want {
			t.Errorf("Path = %q, want default %q", got, want)
		}
	})
}

func TestInitSpillLogDisabled(t *testing.T) {
	cfg := &config.Config{}

	spill, err := InitSpillLog(cfg)
	if err != nil {
		t.Fatalf("InitSpillLog() error = %v", err)
	}
	if spill != nil {
		t.Error("expected nil spill log when WAL_ENABLED=false")
	}
}

func TestInitSpillLogOpens(t *testing.T) {
	cfg := &config.Config{}
	cfg.WAL.Enabled = true
	cfg.WAL.Path = t.TempDir()

	spill, err := InitSpillLog(cfg)
	if err != nil {
		t.Fatalf("InitSpillLog() error = %v", err)
	}
	if spill == nil {
		t.Fatal("expected an open spill log")
	}
	closeSpillLog(spill)
}
