package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the structured form of an error chain written to request logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Fields flattens the dump for structured logging. Postgres keys appear only when the chain
// holds a driver error.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_detail"] = d.PGDetail
		fields["pg_message"] = d.PGMessage
		fields["pg_table"] = d.PGTable
		fields["pg_column"] = d.PGColumn
		fields["pg_constraint"] = d.PGConstraint
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := postgresError(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
	}
	return d
}

// SQLState returns the Postgres SQLSTATE carried by err, from either driver, or "".
func SQLState(err error) string {
	pg, _ := postgresError(err)
	return pg.code
}

type pgDetail struct {
	code, constraint, table, column, detail, message string
}

// postgresError normalises pgx and lib/pq errors into one shape.
func postgresError(err error) (pgDetail, bool) {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return pgDetail{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return pgDetail{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}
	return pgDetail{}, false
}
