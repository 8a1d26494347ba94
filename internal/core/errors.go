package core

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/coregx/eager/internal/schema"
)

// Predefined errors returned by compilation, hydration and execution.
var (
	// ErrNoRows is returned by One when the query matched no root entity.
	ErrNoRows = errors.New("no rows in result set")
	// ErrUnknownEntity is returned when the root entity is not registered.
	ErrUnknownEntity = schema.ErrUnknownEntity
	// ErrUnknownRelation is returned when an include names a relation the owner does not have.
	ErrUnknownRelation = schema.ErrUnknownRelation
	// ErrMalformedFilter is returned for unsupported operators and unknown attribute names.
	ErrMalformedFilter = errors.New("malformed filter")
	// ErrAliasCollision is returned when two include nodes resolve to the same table alias.
	ErrAliasCollision = errors.New("alias collision")
	// ErrRowShape is returned when a result row does not match the compiled column layout.
	ErrRowShape = errors.New("row does not match column layout")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

// DriverError is an execution failure reported by the database driver.
// It is passed through untouched; Code carries the server error code when the
// driver exposes one (MySQL error number, PostgreSQL SQLSTATE).
type DriverError struct {
	Op   string
	SQL  string
	Code string
	Err  error
}

func (e *DriverError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: driver error %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: driver error: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

func newDriverError(op, sql string, err error) error {
	if err == nil {
		return nil
	}
	de := &DriverError{Op: op, SQL: sql, Err: err}

	var myErr *mysql.MySQLError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &myErr):
		de.Code = strconv.Itoa(int(myErr.Number))
	case errors.As(err, &pqErr):
		de.Code = string(pqErr.Code)
	}
	return de
}
