package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/plexsource/internal/migration"
	"gorm.io/gorm"
)

var (
	ErrBootstrapStateInactive = errors.New("bootstrap_state_inactive")
	ErrSchemaVersionMismatch  = errors.New("schema_version_mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema_checksum_mismatch")
)

// SchemaGate reports whether the database schema matches the binary.
type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	db       *gorm.DB
	expected migration.Version
}

func NewSchemaGate(db *gorm.DB) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	expected, err := migration.Current()
	if err != nil {
		return nil, err
	}
	return &schemaGate{db: db, expected: expected}, nil
}

func (g *schemaGate) MustBeActive(ctx context.Context) error {
	state, err := migration.LoadState(ctx, g.db)
	if err != nil {
		return err
	}
	if state.Status != migration.StatusActive {
		return fmt.Errorf("%w: status=%s", ErrBootstrapStateInactive, state.Status)
	}
	if state.SchemaVersion != g.expected.String() {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaVersionMismatch, state.SchemaVersion, g.expected)
	}
	if state.Checksum != nil && *state.Checksum != "" && *state.Checksum != g.expected.Checksum {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, g.expected.Checksum)
	}
	return nil
}
