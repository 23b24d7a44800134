package user

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

// FileRepository implements Repository using file-based storage
type FileRepository struct {
	dataDir string
	users   map[uuid.UUID]*User
	mutex   sync.RWMutex
}

// fileUserData represents the structure of data stored in the JSON file
type fileUserData struct {
	Users []*User `json:"users"`
}

// NewFileRepository creates a new file-based user repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir: dataDir,
		users:   make(map[uuid.UUID]*User),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Create inserts a new user
func (r *FileRepository) Create(ctx context.Context, u User) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username && existing.DeletedAt == nil {
			return nil, ErrUsernameTaken
		}
	}

	created := u
	created.ID = uuid.New()
	created.CreatedAt = time.Now().UTC()

	r.users[created.ID] = &created

	if err := r.save(); err != nil {
		delete(r.users, created.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	createdCopy := created
	return &createdCopy, nil
}

// GetByID retrieves a user by ID
func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, exists := r.users[id]
	if !exists || u.DeletedAt != nil {
		return nil, ErrUserNotFound
	}

	uCopy := *u
	return &uCopy, nil
}

// GetByEmail retrieves a user by email
func (r *FileRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if u.Email == email && u.DeletedAt == nil {
			uCopy := *u
			return &uCopy, nil
		}
	}

	return nil, ErrUserNotFound
}

// GetByUsername retrieves a user by username
func (r *FileRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, u := range r.users {
		if u.Username == username && u.DeletedAt == nil {
			uCopy := *u
			return &uCopy, nil
		}
	}

	return nil, ErrUserNotFound
}

// SetActive sets a user's active flag
func (r *FileRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, exists := r.users[id]
	if !exists || u.DeletedAt != nil {
		return ErrUserNotFound
	}

	previous := u.Active
	u.Active = active

	if err := r.save(); err != nil {
		u.Active = previous
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

func (r *FileRepository) filePath() string {
	return filepath.Join(r.dataDir, "users.json")
}

func (r *FileRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fileData fileUserData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return err
	}

	for _, u := range fileData.Users {
		r.users[u.ID] = u
	}

	return nil
}

func (r *FileRepository) save() error {
	fileData := fileUserData{
		Users: make([]*User, 0, len(r.users)),
	}
	for _, u := range r.users {
		fileData.Users = append(fileData.Users, u)
	}

	data, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.filePath(), data, 0644)
}
