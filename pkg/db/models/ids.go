package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for schema bootstrap in tests and tooling.
func All() []any {
	return []any{
		&Account{},
		&ContentItem{},
		&ContentView{},
		&StarTransaction{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
