package accounts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
)

// Service управляет пользователями.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис пользователей.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "accounts")
	}
	return &Service{store: store, logger: logger}
}

// CreateUser валидирует имя и email и сохраняет пользователя.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := domain.ValidateNewUser(user); err != nil {
		return domain.User{}, err
	}

	var created domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		created, err = tx.Users().Create(ctx, user)
		return err
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to create user")
		return domain.User{}, err
	}

	s.logger.WithField("user_id", created.ID).Info("user created")
	return created, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		user, err = tx.Users().Get(ctx, id)
		return err
	})
	return user, err
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		users, err = tx.Users().List(ctx)
		return err
	})
	return users, err
}
