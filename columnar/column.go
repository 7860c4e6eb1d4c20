package columnar

import (
	"context"

	"github.com/colobj/colobj/colmd"
)

// A Column holds a sequence of occurrences of a common type, split across
// [Page]s.
type Column interface {
	// ColumnDesc returns the metadata for the Column.
	ColumnDesc() *colmd.ColumnDesc

	// ListPages returns the set of pages in the Column.
	ListPages(ctx context.Context) (Pages, error)
}

// Columns is a set of [Column]s.
type Columns []Column

// MemColumn holds a set of pages of a common type in memory. Use
// [ColumnBuilder] to construct a MemColumn.
type MemColumn struct {
	Desc  colmd.ColumnDesc // Description of the column.
	Pages []*MemPage       // The set of pages in the column.
}

var _ Column = (*MemColumn)(nil)

// ColumnDesc implements [Column] and returns c.Desc.
func (c *MemColumn) ColumnDesc() *colmd.ColumnDesc { return &c.Desc }

// ListPages implements [Column] and returns c.Pages.
func (c *MemColumn) ListPages(_ context.Context) (Pages, error) {
	pages := make(Pages, len(c.Pages))
	for i, p := range c.Pages {
		pages[i] = p
	}
	return pages, nil
}
