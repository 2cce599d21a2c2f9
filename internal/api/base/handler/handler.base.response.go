// Package basehdl chứa helper response dùng chung cho mọi HTTP handler.
package basehdl

import (
	"github.com/gofiber/fiber/v3"
)

// JSONResponse trả về JSON response với Content-Type: application/json; charset=utf-8
// để nội dung tiếng Việt hiển thị đúng.
func JSONResponse(c fiber.Ctx, statusCode int, data interface{}) error {
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Status(statusCode).JSON(data)
}

// OK trả về response thành công chuẩn.
func OK(c fiber.Ctx, data interface{}) error {
	return JSONResponse(c, fiber.StatusOK, fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// Created trả về response tạo mới thành công.
func Created(c fiber.Ctx, data interface{}) error {
	return JSONResponse(c, fiber.StatusCreated, fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// Fail trả về response lỗi chuẩn.
func Fail(c fiber.Ctx, statusCode int, message string) error {
	return JSONResponse(c, statusCode, fiber.Map{
		"status":  "error",
		"message": message,
	})
}
