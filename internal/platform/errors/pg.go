package errors

import (
	stderrs "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// codes for the SQLSTATEs the journal can hit
var pgStates = map[string]ErrorCode{
	"23505": ErrorCodeDuplicateKey,    // unique_violation
	"23503": ErrorCodeInvalidArgument, // foreign_key_violation
	"23502": ErrorCodeValidation,      // not_null_violation
	"23514": ErrorCodeValidation,      // check_violation
	"22001": ErrorCodeInvalidArgument, // string_data_right_truncation
	"22P02": ErrorCodeInvalidArgument, // invalid_text_representation
	"25006": ErrorCodeUnavailable,     // read_only_sql_transaction
	"57P01": ErrorCodeUnavailable,     // admin_shutdown
	"57P03": ErrorCodeUnavailable,     // cannot_connect_now
}

// FromPostgres wraps a pgx error with the code its SQLSTATE maps to, nil stays nil
//
// unmapped states and non-postgres errors become ErrorCodeDB, a reported column becomes the field
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := ErrorCodeDB
	var pe *pgconn.PgError
	if stderrs.As(err, &pe) {
		if c, ok := pgStates[pe.Code]; ok {
			code = c
		}
	}
	out := Wrap(err, code, msg)
	if pe != nil && pe.ColumnName != "" {
		out = WithField(out, pe.ColumnName)
	}
	return out
}
