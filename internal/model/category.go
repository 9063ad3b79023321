package model

import "time"

// Category represents a valid transaction category.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int64
	IsActive  bool
}
