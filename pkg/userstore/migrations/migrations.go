// Package migrations embeds the SQL schema for the users table so
// golang-migrate can apply it against a PostgreSQL backend without a
// separate file distribution step.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
