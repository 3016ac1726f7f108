// Package gateway implements table and row data gateways over database/sql.
//
// An [Adapter] wraps a connection for one dialect. [Adapter.InTransaction] hands each unit of work its
// own adapter bound to a database transaction; nested units use savepoints.
// A [Table] addresses one table, optionally scoped by fixed column values (collections are scoped by
// role) and optionally soft deleted through a timestamp column. A [Row] holds the column values of one
// record and writes back only the columns that changed.
//
// Statements are rendered with squirrel using "?" placeholders and rebound to "$n" for PostgreSQL.
// Values are always bound as arguments; table and column names are validated with [IsValidIdentifier].
//
// [Table.NextPosition] hands out the next value of an ordering column (sort_order, position) for a set
// of sibling rows.
package gateway
