package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/tuitionhub/backend/migrations"
)

const migrationUpTemplate = `-- {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

`

const migrationDownTemplate = `-- Rollback of {{.Name}}

`

// versionWidth matches the zero padding of the existing migration files
const versionWidth = 6

// MigrationFile represents a migration file pair
type MigrationFile struct {
	Version     uint
	Name        string
	Description string
	Timestamp   string
	UpPath      string
	DownPath    string
}

// MigrationInfo is one migration known to a source
type MigrationInfo struct {
	Version uint
	Name    string
	HasDown bool
}

// CreateMigration writes an empty up/down pair numbered after the highest
// version already present in migrationsDir.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	clean := sanitizeName(name)
	if clean == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(migrationsDir))
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	baseName := fmt.Sprintf("%0*d_%s", versionWidth, next, clean)
	mf := &MigrationFile{
		Version:     next,
		Name:        clean,
		Description: description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		UpPath:      filepath.Join(migrationsDir, baseName+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, baseName+".down.sql"),
	}

	if err := createMigrationFile(mf.UpPath, migrationUpTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := createMigrationFile(mf.DownPath, migrationDownTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func createMigrationFile(path, tmplContent string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// sanitizeName converts a migration name to a safe file name format
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// ListMigrations returns the migrations of a source ordered by version.
// Files that do not follow the NNN_name.up.sql convention are ignored; a
// missing directory yields an empty list.
func ListMigrations(fsys fs.FS) ([]MigrationInfo, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []MigrationInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*MigrationInfo)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, direction, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}
		info, seen := byVersion[version]
		if !seen {
			info = &MigrationInfo{Version: version, Name: name}
			byVersion[version] = info
		}
		if direction == "down" {
			info.HasDown = true
		}
	}

	out := make([]MigrationInfo, 0, len(byVersion))
	for _, info := range byVersion {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// LatestVersion returns the highest migration version of a source
func LatestVersion(src Source) (uint, error) {
	var fsys fs.FS = migrations.FS
	switch {
	case src.Dir != "":
		fsys = os.DirFS(src.Dir)
	case src.FS != nil:
		fsys = src.FS
	}
	list, err := ListMigrations(fsys)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}
	return list[len(list)-1].Version, nil
}

func parseMigrationName(file string) (version uint, name, direction string, ok bool) {
	var base string
	switch {
	case strings.HasSuffix(file, ".up.sql"):
		base, direction = strings.TrimSuffix(file, ".up.sql"), "up"
	case strings.HasSuffix(file, ".down.sql"):
		base, direction = strings.TrimSuffix(file, ".down.sql"), "down"
	default:
		return 0, "", "", false
	}
	num, rest, found := strings.Cut(base, "_")
	if !found || rest == "" {
		return 0, "", "", false
	}
	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, "", "", false
	}
	return uint(v), rest, direction, true
}
