package todolist

// Query selects which items are fetched. It is a value; the With methods
// return modified copies.
type Query struct {
	Text string
	Tag  string
	Page int // 1-based
}

// Filtered reports whether the search endpoint must be used.
func (q Query) Filtered() bool {
	return q.Text != "" || q.Tag != ""
}

// WithText returns q searching for text, back on the first page.
func (q Query) WithText(text string) Query {
	q.Text = text
	q.Page = 1
	return q
}

// WithTag returns q filtered by tag, back on the first page.
func (q Query) WithTag(tag string) Query {
	q.Tag = tag
	q.Page = 1
	return q
}

// WithPage returns q on page, clamped to 1.
func (q Query) WithPage(page int) Query {
	q.Page = clampPage(page)
	return q
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
