package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// userRepository — представление пользователей внутри транзакции.
type userRepository struct {
	tx *tx
}

func (r *userRepository) Get(_ context.Context, id int64) (domain.User, error) {
	user, ok := r.tx.user(id)
	if !ok {
		return domain.User{}, domain.UserNotFound(id)
	}
	return user, nil
}

func (r *userRepository) List(context.Context) ([]domain.User, error) {
	r.tx.store.mu.RLock()
	result := make([]domain.User, 0, len(r.tx.store.users)+len(r.tx.users))
	for id, user := range r.tx.store.users {
		if _, staged := r.tx.users[id]; staged {
			continue
		}
		result = append(result, user)
	}
	r.tx.store.mu.RUnlock()

	for _, user := range r.tx.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Create присваивает пользователю ID из счётчика хранилища.
func (r *userRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	user.ID = r.tx.store.allocateID(&r.tx.store.nextUserID)
	r.tx.users[user.ID] = user
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
