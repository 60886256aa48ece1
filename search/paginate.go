package search

// Page sizes for listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one slice of a listing plus the totals computed before slicing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NormalizePage clamps page to >= 1 and size to 1..MaxPageSize, defaulting size when unset.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Paginate slices already-filtered items. A page past the end yields empty data with the real totals.
func Paginate[T any](items []T, page, size int) Page[T] {
	page, size = NormalizePage(page, size)
	total := len(items)
	out := Page[T]{
		Data:       []T{},
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
	// compare pages before multiplying so huge page numbers cannot overflow
	if page > out.TotalPages {
		return out
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	out.Data = append(out.Data, items[start:end]...)
	return out
}
