package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Store 抽象索引条目的持久化。磁盘格式不属于本子系统的对外契约，
// 调用方可注入自己的实现。
type Store interface {
	// Load 读取全部索引条目。不存在的存储返回空 map。
	Load() (map[string]types.IndexEntry, error)

	// Save 全量写回索引条目。
	Save(entries map[string]types.IndexEntry) error
}

// MemoryStore 将索引保存在内存中，进程结束即消失。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]types.IndexEntry
}

// NewMemoryStore 创建内存索引存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]types.IndexEntry)}
}

func (s *MemoryStore) Load() (map[string]types.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.IndexEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(entries map[string]types.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]types.IndexEntry, len(entries))
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

// FileStore 将索引以 JSON 形式写入单个文件。
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 创建文件索引存储，父目录不存在时自动创建。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (map[string]types.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]types.IndexEntry), nil
		}
		return nil, types.NewError(types.ErrIndexStore, "read index file").WithCause(err)
	}

	entries := make(map[string]types.IndexEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, types.NewError(types.ErrIndexStore, "decode index file").WithCause(err)
	}
	return entries, nil
}

func (s *FileStore) Save(entries map[string]types.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.NewError(types.ErrIndexStore, "create index dir").WithCause(err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return types.NewError(types.ErrIndexStore, "encode index").WithCause(err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return types.NewError(types.ErrIndexStore, "write index file").WithCause(err)
	}
	return nil
}
