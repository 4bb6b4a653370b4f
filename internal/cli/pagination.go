package cli

import (
	"strconv"
	"strings"

	"github.com/Veraticus/escrow-client/internal/model"
)

// PageSize is the number of results the API returns per page.
const PageSize = 10

// Pagination is the control set under a list.
type Pagination struct {
	Previous string
	Next     string
	Pages    []int
	Current  int
	Total    int
}

// Paginate builds the controls for page, displayed as page number current
// (1 when not positive). Previous and next appear only when the API sent
// the link; page numbers span two either side of current, clipped to the
// page count. Without any link there is nothing to render.
func Paginate[T any](page model.Page[T], current int) Pagination {
	if !page.HasNext() && !page.HasPrevious() {
		return Pagination{}
	}
	if current < 1 {
		current = 1
	}

	p := Pagination{
		Current: current,
		Total:   (page.Count + PageSize - 1) / PageSize,
	}
	if page.HasPrevious() {
		p.Previous = *page.Previous
	}
	if page.HasNext() {
		p.Next = *page.Next
	}
	for i := max(1, current-2); i <= min(p.Total, current+2); i++ {
		p.Pages = append(p.Pages, i)
	}
	return p
}

// Empty reports whether there is nothing to render.
func (p Pagination) Empty() bool {
	return p.Previous == "" && p.Next == "" && len(p.Pages) == 0
}

// Render draws the controls on one line.
func (p Pagination) Render() string {
	if p.Empty() {
		return ""
	}

	var parts []string
	if p.Previous != "" {
		parts = append(parts, PageStyle.Render("‹ Précédent"))
	}
	for _, n := range p.Pages {
		if n == p.Current {
			parts = append(parts, ActivePageStyle.Render(strconv.Itoa(n)))
			continue
		}
		parts = append(parts, PageStyle.Render(strconv.Itoa(n)))
	}
	if p.Next != "" {
		parts = append(parts, PageStyle.Render("Suivant ›"))
	}
	return strings.Join(parts, " ")
}
