// Package common chứa các sentinel error và hằng số dùng chung cho toàn bộ ứng dụng.
package common

import "errors"

// Các sentinel error cơ bản — dùng với errors.Is để kiểm tra loại lỗi.
var (
	ErrNotFound      = errors.New("không tìm thấy tài nguyên")
	ErrRequiredField = errors.New("thiếu trường bắt buộc")
	ErrInvalidInput  = errors.New("dữ liệu đầu vào không hợp lệ")
	ErrNoSession     = errors.New("chưa có phiên đăng nhập")
	ErrCancelled     = errors.New("thao tác đã bị hủy")
)

// Mã lỗi của remote store (tập con mã Postgres mà kho hàng xa trả về trong body lỗi).
// Reconciler dùng các mã này để phân loại lỗi ghi — mỗi loại log một mức riêng,
// không loại nào được phép chặn các bảng khác.
const (
	RemoteCodePermissionDenied = "42501" // Không đủ quyền ghi (row-level policy chặn)
	RemoteCodeUndefinedColumn  = "42703" // Cột không tồn tại — schema local đi trước schema remote
	RemoteCodeMalformedID      = "22P02" // Định danh sai định dạng (không phải UUID hợp lệ)
	RemoteCodeDuplicateKey     = "23505" // Trùng khóa — bản ghi đã tồn tại trên remote
	RemoteCodePolicyRecursion  = "42P17" // Policy đệ quy vô hạn — làm rỗng bảng mỗi lần refresh
)
