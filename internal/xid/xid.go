package xid

import "github.com/google/uuid"

// New returns prefix-<uuidv7>. Version 7 ids embed a millisecond timestamp
// plus a per-process sequence, so ids from one process sort in creation order.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}

