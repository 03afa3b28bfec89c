package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string (time-sortable identifier). Run and trade ids
// sort by creation time, which keeps journal rows naturally ordered.
func New() string {
	return ulid.Make().String()
}
