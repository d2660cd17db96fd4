package api

import "math"

// Post is a single post as served by the posts API.
type Post struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Page is one page of posts.
type Page struct {
	Items      []Post `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`

	// NextPage is the page to request next, or 0 when HasMore is false.
	NextPage int `json:"next_page,omitempty"`
}

// NewPage builds a Page, deriving HasMore and NextPage from the total.
func NewPage(items []Post, page, pageSize, total int) Page {
	if items == nil {
		items = []Post{}
	}
	p := Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		HasMore:    hasMore(page, pageSize, total),
	}
	if p.HasMore {
		p.NextPage = page + 1
	}
	return p
}

// hasMore reports whether posts exist after page. It is page*pageSize < total
// rearranged so that it cannot overflow.
func hasMore(page, pageSize, total int) bool {
	if page < 1 || pageSize < 1 || total < 1 || page == math.MaxInt {
		return false
	}
	return page <= (total-1)/pageSize
}

// PageCount returns the number of pages needed to hold total posts.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	n := total / pageSize
	if total%pageSize != 0 {
		n++
	}
	return n
}

// pageOffset returns the number of posts before page, saturating so that
// offset plus one more page never overflows.
func pageOffset(page, pageSize int) int {
	if page <= 1 {
		return 0
	}
	if limit := (math.MaxInt - pageSize) / pageSize; page-1 > limit {
		return limit * pageSize
	}
	return (page - 1) * pageSize
}

// IDs returns the post IDs on the page in order.
func (p Page) IDs() []int64 {
	ids := make([]int64, len(p.Items))
	for i, item := range p.Items {
		ids[i] = item.ID
	}
	return ids
}

// Find returns the post with id if it is on the page.
func (p Page) Find(id int64) (Post, bool) {
	for _, item := range p.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Post{}, false
}
