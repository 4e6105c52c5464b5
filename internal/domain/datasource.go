package domain

import "time"

// DataSource is a named origin of address records.
// Corresponds to data_sources table.
type DataSource struct {
	ID        int64     // generated
	Name      string    // unique
	CreatedAt time.Time // first seen
}
