//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	userPrefix  = "user:"
	emailPrefix = "email:"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, fullName, email, hashedPassword string) (domain.User, error)
	FindByID(ctx context.Context, identityID string) (domain.Identity, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateProfilePic(ctx context.Context, identityID, profilePic string) (domain.Identity, error)
	ListExcept(ctx context.Context, identityID string) ([]domain.Identity, error)
}

type UserRepository struct {
	db  *badger.DB
	now func() time.Time
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// userRecord is the stored shape of an account, password hash included.
type userRecord struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	ProfilePic   string    `json:"profilePic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateUser persists a new account under "user:{id}" and reserves its email
// under "email:{email}" in the same transaction.
func (u *UserRepository) CreateUser(_ context.Context, fullName, email, hashedPassword string) (domain.User, error) {
	now := u.now().UTC()
	record := userRecord{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        normalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(emailPrefix + record.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setUser(txn, record); err != nil {
			return err
		}
		return txn.Set(emailKey, []byte(record.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// FindByID resolves an identity for the session gate.
func (u *UserRepository) FindByID(_ context.Context, identityID string) (domain.Identity, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) (err error) {
		record, err = getUser(txn, identityID)
		return err
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return toUser(record).Identity(), nil
}

// GetUserByEmail returns the full account, used for login only.
func (u *UserRepository) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailPrefix + normalizeEmail(email)))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrIdentityNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) UpdateProfilePic(_ context.Context, identityID, profilePic string) (domain.Identity, error) {
	var record userRecord
	err := u.db.Update(func(txn *badger.Txn) (err error) {
		record, err = getUser(txn, identityID)
		if err != nil {
			return err
		}
		record.ProfilePic = profilePic
		record.UpdatedAt = u.now().UTC()
		return setUser(txn, record)
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return toUser(record).Identity(), nil
}

// ListExcept returns every identity but identityID, ordered by full name.
func (u *UserRepository) ListExcept(_ context.Context, identityID string) ([]domain.Identity, error) {
	var records []userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record userRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	identities := lo.FilterMap(records, func(r userRecord, _ int) (domain.Identity, bool) {
		return toUser(r).Identity(), r.ID != identityID
	})
	slices.SortFunc(identities, func(a, b domain.Identity) int {
		return strings.Compare(a.FullName, b.FullName)
	})
	return identities, nil
}

func getUser(txn *badger.Txn, identityID string) (userRecord, error) {
	var record userRecord
	item, err := txn.Get([]byte(userPrefix + identityID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return record, fmt.Errorf("%w: %s", errors.ErrIdentityNotFound, identityID)
	}
	if err != nil {
		return record, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}

func setUser(txn *badger.Txn, record userRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(userPrefix+record.ID), data)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUser(r userRecord) domain.User {
	return domain.User{
		ID:           r.ID,
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		ProfilePic:   r.ProfilePic,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
