package knowledge

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"tierd/internal/common/fsutil"
)

// JSONFileStore keeps the knowledge base in one pretty-printed JSON object.
// A missing or unreadable file loads as an empty map.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONFileStore(path string) *JSONFileStore { return &JSONFileStore{path: path} }

func (s *JSONFileStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kb := make(map[string]string)
	b, err := os.ReadFile(s.path)
	if err != nil {
		return kb, nil
	}
	if err := json.Unmarshal(b, &kb); err != nil {
		return make(map[string]string), nil
	}
	return kb, nil
}

func (s *JSONFileStore) Save(ctx context.Context, kb map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if kb == nil {
		kb = map[string]string{}
	}
	b, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsutil.WriteFileAtomic(s.path, b, 0o644)
}

func (s *JSONFileStore) Close() error { return nil }
