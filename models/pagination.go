package models

// Page is one slice of an ordered result set addressed by a 1-indexed page number.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

// NewPage normalizes page and perPage so that page >= 1 and perPage >= 1.
func NewPage[T any](items []T, page, perPage int, total int64) Page[T] {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: page, PerPage: perPage, Total: total}
}

// Offset is the number of rows preceding this page.
func (p Page[T]) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages is the total number of pages.
func (p Page[T]) Pages() int {
	if p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

func (p Page[T]) HasPrev() bool { return p.Page > 1 }

func (p Page[T]) HasNext() bool { return p.Page < p.Pages() }

func (p Page[T]) PrevNum() int { return p.Page - 1 }

func (p Page[T]) NextNum() int { return p.Page + 1 }

// IterPages lists page numbers for a pager widget. A zero marks a gap.
// The window keeps one page at each edge, one before the current page and one after it.
func (p Page[T]) IterPages() []int {
	const leftEdge, leftCurrent, rightCurrent, rightEdge = 1, 1, 2, 1
	pages := p.Pages()
	out := make([]int, 0, pages)
	last := 0
	for num := 1; num <= pages; num++ {
		if num <= leftEdge ||
			(num > p.Page-leftCurrent-1 && num < p.Page+rightCurrent) ||
			num > pages-rightEdge {
			if last+1 != num {
				out = append(out, 0)
			}
			out = append(out, num)
			last = num
		}
	}
	return out
}
