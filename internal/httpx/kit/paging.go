package kit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// PagingParams contains offset pagination parameters from an HTTP request.
type PagingParams struct {
	Limit  int
	Offset int
	Sort   string
}

func ParsePaging(c *fiber.Ctx) (PagingParams, error) {
	p := PagingParams{
		Limit:  lo.Clamp(c.QueryInt("limit", 20), 1, 100),
		Offset: c.QueryInt("offset", 0),
		Sort:   c.Query("sort", ""),
	}
	if p.Offset < 0 {
		return p, BadRequest("invalid offset", p.Offset)
	}
	return p, nil
}

// Meta builds the page metadata for count returned items.
func (p PagingParams) Meta(count int) PageMeta {
	next := p.Offset + count
	return PageMeta{
		Limit:      p.Limit,
		Offset:     p.Offset,
		Count:      count,
		NextOffset: lo.Ternary(count == p.Limit, &next, nil),
		HasMore:    count == p.Limit,
		Sort:       p.Sort,
	}
}
