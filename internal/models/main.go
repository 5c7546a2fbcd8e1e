package models

// ModelRegistry lists every model that participates in schema migration.
var ModelRegistry = []interface{}{
	&WaitlistEntry{},
}
