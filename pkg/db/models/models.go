package models

// All lists every persisted model in dependency order, for gorm AutoMigrate on SQLite.
func All() []any {
	return []any{
		&Product{},
		&CapacitySlot{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
