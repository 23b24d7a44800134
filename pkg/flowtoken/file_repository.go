package flowtoken

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRepository implements Repository using file-based storage. It is
// intended for development and tests; the mutex gives it the same
// atomic get-or-create and rotation guarantees as the Postgres
// repository within one process.
type FileRepository struct {
	dataDir string
	tokens  map[uuid.UUID]*FlowToken
	mutex   sync.RWMutex
}

// fileTokenData represents the structure of data stored in the JSON file
type fileTokenData struct {
	Tokens []*FlowToken `json:"tokens"`
}

// NewFileRepository creates a new file-based flow token repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir: dataDir,
		tokens:  make(map[uuid.UUID]*FlowToken),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Create inserts a token, returning the existing live token instead if
// one already holds the same identifier.
func (r *FileRepository) Create(ctx context.Context, token FlowToken) (*FlowToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.tokens {
		if existing.Identifier == token.Identifier && existing.DeletedAt == nil {
			existingCopy := *existing
			return &existingCopy, nil
		}
	}

	ft := &FlowToken{
		ID:         uuid.New(),
		Identifier: token.Identifier,
		Key:        token.Key,
		UserID:     token.UserID,
		Plan:       token.Plan,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  token.ExpiresAt,
	}

	r.tokens[ft.ID] = ft

	if err := r.save(); err != nil {
		delete(r.tokens, ft.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	ftCopy := *ft
	return &ftCopy, nil
}

// GetByIdentifier retrieves a live token by identifier
func (r *FileRepository) GetByIdentifier(ctx context.Context, identifier string) (*FlowToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, ft := range r.tokens {
		if ft.Identifier == identifier && ft.DeletedAt == nil {
			ftCopy := *ft
			return &ftCopy, nil
		}
	}

	return nil, ErrTokenNotFound
}

// GetByKey retrieves a live token by its opaque key
func (r *FileRepository) GetByKey(ctx context.Context, key string) (*FlowToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, ft := range r.tokens {
		if ft.Key == key && ft.DeletedAt == nil {
			ftCopy := *ft
			return &ftCopy, nil
		}
	}

	return nil, ErrTokenNotFound
}

// UpdateKeyAndExpiry rotates a token's key and expiry
func (r *FileRepository) UpdateKeyAndExpiry(ctx context.Context, id uuid.UUID, key string, expiresAt time.Time) (*FlowToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ft, exists := r.tokens[id]
	if !exists || ft.DeletedAt != nil {
		return nil, ErrTokenNotFound
	}

	previousKey := ft.Key
	previousExpiry := ft.ExpiresAt
	ft.Key = key
	ft.ExpiresAt = expiresAt

	if err := r.save(); err != nil {
		ft.Key = previousKey
		ft.ExpiresAt = previousExpiry
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	ftCopy := *ft
	return &ftCopy, nil
}

// SoftDeleteToken soft deletes a token
func (r *FileRepository) SoftDeleteToken(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ft, exists := r.tokens[id]
	if !exists || ft.DeletedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	ft.DeletedAt = &now

	if err := r.save(); err != nil {
		ft.DeletedAt = nil
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// CleanupExpiredTokens soft deletes tokens that expired before the cutoff
func (r *FileRepository) CleanupExpiredTokens(ctx context.Context, before time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	for _, ft := range r.tokens {
		if ft.DeletedAt == nil && ft.ExpiresAt.Before(before) {
			deletedAt := now
			ft.DeletedAt = &deletedAt
		}
	}

	return r.save()
}

func (r *FileRepository) filePath() string {
	return filepath.Join(r.dataDir, "flow_tokens.json")
}

func (r *FileRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fileData fileTokenData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return err
	}

	for _, ft := range fileData.Tokens {
		r.tokens[ft.ID] = ft
	}

	return nil
}

func (r *FileRepository) save() error {
	fileData := fileTokenData{
		Tokens: make([]*FlowToken, 0, len(r.tokens)),
	}
	for _, ft := range r.tokens {
		fileData.Tokens = append(fileData.Tokens, ft)
	}

	data, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.filePath(), data, 0644)
}
