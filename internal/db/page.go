package db

const (
	// DefaultPageLimit is used when a list request gives no limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size a caller may ask for.
	MaxPageLimit = 100
)

// PageBounds converts a 1-based page and limit into LIMIT and OFFSET values.
func PageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
