package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

// Repository persists one cart's ordered item list.
type Repository interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
}

func encode(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(document{Items: items})
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return b, nil
}

func decode(b []byte) ([]Item, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return doc.Items, nil
}

// RedisRepository stores the cart at pb_cart:{session} with a sliding TTL.
type RedisRepository struct {
	client  *redis.Client
	session string
}

func NewRedisRepository(client *redis.Client, session string) *RedisRepository {
	return &RedisRepository{client: client, session: session}
}

func (r *RedisRepository) Load(ctx context.Context) ([]Item, error) {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

func (r *RedisRepository) Save(ctx context.Context, items []Item) error {
	b, err := encode(items)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(), b, redisx.TTLCart).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) key() string { return fmt.Sprintf(redisx.KeyCart, r.session) }

// MemoryRepository keeps the encoded document in process memory.
type MemoryRepository struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (m *MemoryRepository) Load(context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return []Item{}, nil
	}
	return decode(m.data)
}

func (m *MemoryRepository) Save(_ context.Context, items []Item) error {
	b, err := encode(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = b
	m.mu.Unlock()
	return nil
}

// Raw returns the stored document, nil before the first save.
func (m *MemoryRepository) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	return append([]byte(nil), m.data...)
}
