package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nexus_crm/internal/logger"
)

// RowClient là giao diện hẹp tới remote store: select-all, upsert theo id,
// delete theo id — mỗi thao tác trên một bảng. Remote store là hộp đen có thể
// chấp nhận, từ chối hoặc không liên lạc được.
type RowClient interface {
	SelectAll(ctx context.Context, table string) ([]map[string]interface{}, error)
	Upsert(ctx context.Context, table string, row map[string]interface{}) error
	Delete(ctx context.Context, table string, id string) error
}

// RemoteError là lỗi có cấu trúc từ remote store, mang mã máy-đọc-được
// để Reconciler phân loại.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store trả về lỗi %s (http %d): %s", e.Code, e.Status, e.Message)
}

// HTTPRowClient nói chuyện với remote store qua row API kiểu REST:
// GET/POST/DELETE /rest/v1/{table}. Mỗi request mang api key + bearer token
// và có timeout ngắn — một endpoint không liên lạc được chỉ làm chậm đúng
// một bảng chứ không treo cả chu kỳ reconcile.
type HTTPRowClient struct {
	baseURL string
	apiKey  string
	session SessionProvider
	client  *http.Client
}

// NewHTTPRowClient tạo client với timeout cho từng request.
func NewHTTPRowClient(baseURL, apiKey string, session SessionProvider, timeout time.Duration) *HTTPRowClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRowClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		session: session,
		client:  &http.Client{Timeout: timeout},
	}
}

// setHeaders gắn header xác thực chung cho mọi request.
func (c *HTTPRowClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if c.session != nil && c.session.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}
}

// decodeError đọc body lỗi có cấu trúc {code, message} từ remote store.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	re := &RemoteError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, re); err != nil || re.Code == "" {
		re.Message = string(body)
	}
	return re
}

// SelectAll đọc toàn bộ bản ghi của một bảng (kèm count để log).
func (c *HTTPRowClient) SelectAll(ctx context.Context, table string) ([]map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*", c.baseURL, url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("không đọc được response của bảng %s: %w", table, err)
	}

	if total, ok := totalFromContentRange(resp.Header.Get("Content-Range")); ok {
		logger.GetAppLogger().WithFields(map[string]interface{}{
			"table": table,
			"total": total,
			"rows":  len(rows),
		}).Debug("🔄 [SYNC] Đã đọc bảng từ remote store")
	}
	return rows, nil
}

// totalFromContentRange lấy tổng số bản ghi từ header Content-Range
// dạng "0-24/25" (hoặc "*/0" khi bảng rỗng).
func totalFromContentRange(h string) (int, bool) {
	idx := strings.LastIndex(h, "/")
	if idx < 0 {
		return 0, false
	}
	total, err := strconv.Atoi(h[idx+1:])
	if err != nil {
		return 0, false
	}
	return total, true
}

// Upsert ghi một bản ghi theo id (insert hoặc update nếu id đã tồn tại).
func (c *HTTPRowClient) Upsert(ctx context.Context, table string, row map[string]interface{}) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

// Delete xóa một bản ghi theo id.
func (c *HTTPRowClient) Delete(ctx context.Context, table string, id string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, url.PathEscape(table), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}
