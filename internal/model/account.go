package model

import "time"

// Account represents a bank account that transactions belong to.
type Account struct {
	CreatedAt time.Time
	Name      string
	IBAN      string
	ID        int64
	IsActive  bool
}
