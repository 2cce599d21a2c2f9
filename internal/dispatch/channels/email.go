// Package channels chứa các kênh gửi thật sự cho Bulk Dispatch Scheduler.
package channels

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// EmailDeliverer gửi nội dung qua SMTP. Cấu hình lấy từ config lúc wiring.
type EmailDeliverer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// ValidAddress kiểm tra địa chỉ có tối thiểu hợp lệ cho kênh email không.
func (d *EmailDeliverer) ValidAddress(address string) bool {
	return strings.Contains(address, "@")
}

// Deliver gửi một email HTML đến address.
func (d *EmailDeliverer) Deliver(ctx context.Context, address, subject, content string) error {
	msg := gomail.NewMessage()
	if d.FromName != "" {
		msg.SetHeader("From", fmt.Sprintf("%s <%s>", d.FromName, d.From))
	} else {
		msg.SetHeader("From", d.From)
	}
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", content)

	dialer := gomail.NewDialer(d.Host, d.Port, d.Username, d.Password)

	// gomail không nhận context — kiểm tra hủy trước khi quay số là đủ,
	// vì scheduler đã kiểm tra hủy ở biên mỗi item
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return dialer.DialAndSend(msg)
}
