// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
	"github.com/daniell-olaitan/sensorhub/internal/firmware"
)

// catalogEntry is the on-disk shape of one firmware version in the seed
// file. It carries no timestamp: every entry's CreatedAt is set to the time
// the catalog is loaded, so a catalog file doesn't carry timestamps by hand.
type catalogEntry struct {
	Version              string `yaml:"version"`
	SizeBytes            int64  `yaml:"size_bytes"`
	Checksum             string `yaml:"checksum"`
	ReleaseNotes         string `yaml:"release_notes"`
	MinCompatibleVersion string `yaml:"min_compatible_version"`
}

// loadFirmwareCatalog reads path as a YAML list of catalogEntry and
// registers each with orch, so an operator can seed known-good firmware
// versions at startup instead of registering them one at a time through
// the orchestrator's API.
func loadFirmwareCatalog(ctx context.Context, orch *firmware.Orchestrator, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	var entries []catalogEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	now := time.Now().UTC()
	for _, e := range entries {
		m := domain.Metadata{
			Version:              e.Version,
			SizeBytes:            e.SizeBytes,
			Checksum:             e.Checksum,
			ReleaseNotes:         e.ReleaseNotes,
			MinCompatibleVersion: e.MinCompatibleVersion,
			CreatedAt:            now,
		}
		if err := orch.RegisterFirmware(ctx, m); err != nil {
			return fmt.Errorf("register firmware %s: %w", e.Version, err)
		}
	}
	return nil
}
