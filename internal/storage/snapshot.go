// Package storage cung cấp kho snapshot cục bộ trên bbolt.
// Mỗi collection lưu dưới một key duy nhất trong bucket collections — giá trị là
// toàn bộ collection đã serialize. Ghi cả collection mỗi lần mutation là trade-off
// chấp nhận được: write amplification giới hạn theo kích thước collection, và một
// lần ghi hỏng chỉ ảnh hưởng snapshot của đúng một collection.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const bucketCollections = "collections" // key: tên collection -> JSON toàn bộ collection

// SnapshotStore là kho snapshot cục bộ, backing cho Local Store.
type SnapshotStore struct {
	db *bbolt.DB
}

// Open mở (hoặc tạo) file bbolt tại path.
func Open(path string) (*SnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("không thể tạo thư mục dữ liệu %s: %w", dir, err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("không thể mở snapshot store tại %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketCollections))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("không thể tạo bucket collections: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Save ghi snapshot đầy đủ của một collection.
func (s *SnapshotStore) Save(collection string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketCollections)).Put([]byte(collection), data)
	})
}

// Load đọc snapshot của một collection; trả về nil nếu chưa từng lưu.
func (s *SnapshotStore) Load(collection string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketCollections)).Get([]byte(collection))
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close đóng file bbolt.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
