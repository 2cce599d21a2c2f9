// Package remote chứa Remote Reconciler và client HTTP nói chuyện với remote store.
package remote

import "sync"

// SessionProvider cung cấp trạng thái phiên đăng nhập cho Reconciler:
// có phiên sống hay không, actor thuộc tenant nào, và token gửi kèm request.
// Nhà cung cấp xác thực thật nằm ngoài phạm vi — đây là giao diện hẹp duy nhất
// mà engine nhìn thấy.
type SessionProvider interface {
	Live() bool
	Organization() string
	Token() string
}

// StaticSession là SessionProvider đơn giản cho chạy service-to-service và test:
// token gán tay, renewal phát sự kiện cho các listener (để trigger PullAll).
type StaticSession struct {
	mu        sync.RWMutex
	token     string
	org       string
	listeners []func()
}

// NewStaticSession tạo session với token và tenant ban đầu (có thể rỗng = chưa đăng nhập).
func NewStaticSession(token, org string) *StaticSession {
	return &StaticSession{token: token, org: org}
}

// Live trả về true khi đang có token.
func (s *StaticSession) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Organization trả về tenant của phiên hiện tại.
func (s *StaticSession) Organization() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.org
}

// Token trả về token hiện tại.
func (s *StaticSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnRenewal đăng ký listener được gọi mỗi lần phiên được gia hạn
// (đăng nhập, refresh token). Reconciler dùng để chạy lại PullAll.
func (s *StaticSession) OnRenewal(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Renew cập nhật token/tenant và phát sự kiện renewal.
func (s *StaticSession) Renew(token, org string) {
	s.mu.Lock()
	s.token = token
	s.org = org
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
