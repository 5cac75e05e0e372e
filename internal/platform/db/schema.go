package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidSchemaName reports whether name can be used unquoted as a schema.
func ValidSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// CreateSchema creates the schema if it does not exist.
func CreateSchema(ctx context.Context, q execer, schema string) error {
	if !ValidSchemaName(schema) {
		return fmt.Errorf("invalid schema name: %s", schema)
	}
	if _, err := q.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}

// DropSchema removes the schema and everything in it.
func DropSchema(ctx context.Context, q execer, schema string) error {
	if !ValidSchemaName(schema) {
		return fmt.Errorf("invalid schema name: %s", schema)
	}
	if _, err := q.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema, err)
	}
	return nil
}
