package config

const (
	// DefaultDatabasePath is where the catalog database lives unless
	// DATABASE_PATH says otherwise.
	DefaultDatabasePath = "./circulate.db"

	// DefaultSearchBase is the base name search indexes and pointers hang
	// off: circulation-works-v1, circulation-works-empty, and so on.
	DefaultSearchBase = "circulation-works"
)
