package scenario

import (
	"fmt"

	"optiguide/internal/model"
)

// MalformedOverrideError reports an override whose stored value cannot be
// parsed for its target column. It aborts the materialization.
type MalformedOverrideError struct {
	Override model.Override
	Err      error
}

func (e *MalformedOverrideError) Error() string {
	o := e.Override
	return fmt.Sprintf("malformed override %d (%s[%d].%s=%q): %v", o.ID, o.TableName, o.RowID, o.ColumnName, o.Value, e.Err)
}

func (e *MalformedOverrideError) Unwrap() error { return e.Err }

// Reason values for UnknownReference.
const (
	UnknownTable  = "unknown table"
	UnknownRow    = "unknown row"
	UnknownColumn = "unknown column"
)

// UnknownReference records an override that points at a table, row or column
// the dataset does not have. These are skipped, never fatal.
type UnknownReference struct {
	Override model.Override `json:"override"`
	Reason   string         `json:"reason"`
}

func (u UnknownReference) Error() string {
	return fmt.Sprintf("%s: %s[%d].%s", u.Reason, u.Override.TableName, u.Override.RowID, u.Override.ColumnName)
}
