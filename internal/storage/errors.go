package storage

import "errors"

// Error taxonomy of the engine core. Structural errors are fatal at the
// call site; schema errors are fatal at construction; catalog errors surface
// through the Database API; logical query failures are ordinary error values
// the transaction layer classifies.
var (
	// ErrPageNoCapacity is returned by Page.Write when the page is full.
	ErrPageNoCapacity = errors.New("page has no capacity")

	// ErrPageOutOfRange is returned on reads below zero or at or past the
	// used prefix of a page.
	ErrPageOutOfRange = errors.New("page cell out of range")

	// ErrColumnOutOfRange marks an access to a column the table lacks.
	ErrColumnOutOfRange = errors.New("column out of range")

	// ErrRIDOutOfRange marks an access to a RID outside the record stream.
	ErrRIDOutOfRange = errors.New("rid out of range")

	// ErrPrimaryKeyOutOfBounds marks a table built with a primary key index
	// outside its columns.
	ErrPrimaryKeyOutOfBounds = errors.New("primary key out of bounds")

	// ErrTotalColumnsInvalid marks a table built with no columns.
	ErrTotalColumnsInvalid = errors.New("total columns invalid")

	// ErrTableNotUnique is returned when creating a table whose name or
	// directory already exists.
	ErrTableNotUnique = errors.New("table not unique")

	// ErrTableNotFound is returned when a table is absent from the catalog
	// and from disk.
	ErrTableNotFound = errors.New("table not found")

	// ErrRecordNotFound is the logical failure of queries addressing a key
	// with no live record.
	ErrRecordNotFound = errors.New("record not found")
)
