package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// Version identifies the embedded schema.
type Version struct {
	Number   uint
	Checksum string
}

func (v Version) String() string {
	return strconv.FormatUint(uint64(v.Number), 10)
}

// Current returns the latest embedded migration number and a checksum over
// every up migration.
func Current() (Version, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return Version{}, fmt.Errorf("list migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	var latest uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		number, ok := parseNumber(name)
		if !ok {
			return Version{}, fmt.Errorf("invalid migration filename: %s", name)
		}
		latest = max(latest, number)
		names = append(names, name)
	}
	if latest == 0 {
		return Version{}, errors.New("no embedded migrations found")
	}
	sort.Strings(names)

	hasher := sha256.New()
	for _, name := range names {
		content, err := embeddedMigrations.ReadFile(migrationsDir + "/" + name)
		if err != nil {
			return Version{}, fmt.Errorf("read migration %s: %w", name, err)
		}
		_, _ = hasher.Write([]byte(name))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(content)
		_, _ = hasher.Write([]byte{0})
	}

	return Version{Number: latest, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

func parseNumber(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}
