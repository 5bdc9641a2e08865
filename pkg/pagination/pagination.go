package pagination

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds resolved pagination parameters. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// New resolves a requested page and page size. Non-positive values fall back
// to the first page and DefaultPerPage; PerPage is capped at MaxPerPage.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
	}
}

// Window returns the [start, end) bounds of the page within total items.
// Pages past the end yield an empty window at total.
func (p Params) Window(total int) (start, end int) {
	start = min(p.Offset, total)
	end = min(start+p.PerPage, total)
	return start, end
}

// TotalPages returns the number of pages needed for total items.
func (p Params) TotalPages(total int) int {
	if p.PerPage < 1 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}
