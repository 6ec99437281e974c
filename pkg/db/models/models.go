package models

import "github.com/google/uuid"

// assignID populates a uuid primary key before insert so the same models work
// on Postgres and on the sqlite databases used in tests.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model for migration validation and test databases.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&SupplierItem{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&StockReservation{},
		&SupplierItemRequest{},
	}
}
