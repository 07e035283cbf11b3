// Package seed loads the room, staff and time limit catalog from a JSON or YAML file.
//
// Rooms, staff and limits are administered outside this system; the seed file
// is how a deployment provides them. Loading is idempotent.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
)

// Saver writes a catalog in one transaction.
type Saver interface {
	SaveCatalog(ctx context.Context, catalog domain.Catalog) error
}

// File is the on-disk format. Rooms keep file order as display order.
type File struct {
	Rooms      []dto.Room      `json:"rooms"`
	Staff      []dto.Staff     `json:"staff"`
	TimeLimits []dto.TimeLimit `json:"time_limits"`
}

// Parse decodes and validates a seed document.
func Parse(r io.Reader) (domain.Catalog, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return domain.Catalog{}, fmt.Errorf("invalid seed file: %w", err)
	}

	var c domain.Catalog
	seenRooms := make(map[string]bool, len(f.Rooms))
	for i, r := range f.Rooms {
		if strings.TrimSpace(r.ID) == "" {
			return domain.Catalog{}, fmt.Errorf("rooms[%d]: %w", i, domain.ErrRoomRequired)
		}
		if seenRooms[r.ID] {
			return domain.Catalog{}, fmt.Errorf("rooms[%d]: duplicate room %q", i, r.ID)
		}
		seenRooms[r.ID] = true
		c.Rooms = append(c.Rooms, r.ToRoom())
	}
	for i, s := range f.Staff {
		if strings.TrimSpace(s.ID) == "" {
			return domain.Catalog{}, fmt.Errorf("staff[%d]: %w", i, domain.ErrStaffRequired)
		}
		c.Staff = append(c.Staff, domain.Staff{ID: s.ID, Name: s.Name})
	}
	for i, l := range f.TimeLimits {
		if l.CleaningType == "" {
			return domain.Catalog{}, fmt.Errorf("time_limits[%d]: cleaning_type is required", i)
		}
		if l.Minutes <= 0 {
			return domain.Catalog{}, fmt.Errorf("time_limits[%d]: minutes must be positive, got %d", i, l.Minutes)
		}
		c.TimeLimits = append(c.TimeLimits, domain.TimeLimit{
			CleaningType:    l.CleaningType,
			GuestCapacityID: l.GuestCapacityID,
			Minutes:         l.Minutes,
		})
	}
	return c, nil
}

// ParseYAML decodes a YAML seed document. Keys match the JSON format.
func ParseYAML(r io.Reader) (domain.Catalog, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return domain.Catalog{}, fmt.Errorf("invalid seed file: %w", err)
	}
	// Round-trip through JSON so both formats share one set of checks.
	data, err := json.Marshal(doc)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("invalid seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Apply loads the seed file at path into saver. An empty path is a no-op.
func Apply(ctx context.Context, saver Saver, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	parse := Parse
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseYAML
	}
	catalog, err := parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := saver.SaveCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}

	slog.InfoContext(ctx, "catalog seeded",
		"path", path,
		"rooms", len(catalog.Rooms),
		"staff", len(catalog.Staff),
		"time_limits", len(catalog.TimeLimits))
	return nil
}
