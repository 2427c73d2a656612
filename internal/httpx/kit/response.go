package kit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// PageMeta contains pagination metadata for API responses
type PageMeta struct {
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	Count      int    `json:"count"`
	NextOffset *int   `json:"next_offset,omitempty"`
	HasMore    bool   `json:"has_more"`
	Sort       string `json:"sort,omitempty"`
}

// RequestID extracts request id from headers
func RequestID(c *fiber.Ctx) string {
	rid := c.GetRespHeader("X-Request-ID")
	return lo.Ternary(rid != "", rid, c.Get("X-Request-ID"))
}

func envelope(status int, data any, meta any, c *fiber.Ctx) error {
	body := fiber.Map{
		"result":     true,
		"data":       data,
		"request_id": RequestID(c),
	}
	if meta != nil {
		body["meta"] = meta
	}
	return c.Status(status).JSON(body)
}

// OK sends a 200 OK response with data
func OK(c *fiber.Ctx, data any) error {
	return envelope(fiber.StatusOK, data, nil, c)
}

// Created sends a 201 Created response with data
func Created(c *fiber.Ctx, data any) error {
	return envelope(fiber.StatusCreated, data, nil, c)
}

// List sends a 200 OK response with paginated data and metadata
func List(c *fiber.Ctx, items any, meta PageMeta) error {
	return envelope(fiber.StatusOK, items, meta, c)
}

// Fail sends the failure envelope.
func Fail(c *fiber.Ctx, status int, code, msg string, details any) error {
	body := fiber.Map{
		"result":     false,
		"error":      msg,
		"errorCode":  code,
		"request_id": RequestID(c),
	}
	if details != nil {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}
