package users

import (
	"context"
	"errors"
	"sync"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew = "users.service.new"
	opList       = "users.list"
	opEnsure     = "users.ensure"
	opGet        = "users.get"

	reasonMissingDatabase = "missing_database"
	reasonInvalidName     = "invalid_name"
	reasonUserNotFound    = "user_not_found"
	reasonQueryFailed     = "query_failed"
	reasonCreateFailed    = "create_failed"
)

// ServiceConfig describes the dependencies of the user directory.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service lists users and resolves display names to stable identifiers.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the user directory.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// List returns every user ordered by id.
func (s *Service) List(ctx context.Context) ([]store.User, error) {
	var users []store.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err)
		return nil, store.NewServiceError(opList, reasonQueryFailed, err)
	}
	if users == nil {
		users = []store.User{}
	}
	return users, nil
}

// Ensure returns the user with the given name, creating it on first sight.
func (s *Service) Ensure(ctx context.Context, rawName string) (store.User, error) {
	name, err := store.NewUserName(rawName)
	if err != nil {
		return store.User{}, store.NewServiceError(opEnsure, reasonInvalidName, err)
	}

	cacheKey := name.String()
	if cached, ok := s.cache.Load(cacheKey); ok {
		if user, ok := cached.(store.User); ok {
			return user, nil
		}
	}

	user, err := s.findByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = store.User{Name: name.String()}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			// A concurrent Ensure may have won the unique index.
			existing, findErr := s.findByName(ctx, name)
			if findErr != nil {
				s.logError(opEnsure, reasonCreateFailed, createErr, zap.String("name", name.String()))
				return store.User{}, store.NewServiceError(opEnsure, reasonCreateFailed, createErr)
			}
			user = existing
		} else {
			s.loggerOrDefault().Info("user created", zap.Int64("user_id", user.ID), zap.String("name", user.Name))
		}
	} else if err != nil {
		s.logError(opEnsure, reasonQueryFailed, err, zap.String("name", name.String()))
		return store.User{}, store.NewServiceError(opEnsure, reasonQueryFailed, err)
	}

	s.cache.Store(cacheKey, user)
	return user, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id store.UserID) (store.User, error) {
	var user store.User
	err := s.db.WithContext(ctx).Where("id = ?", id.Int64()).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.User{}, store.NewServiceError(opGet, reasonUserNotFound, store.ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.Int64("user_id", id.Int64()))
		return store.User{}, store.NewServiceError(opGet, reasonQueryFailed, err)
	}
	return user, nil
}

func (s *Service) findByName(ctx context.Context, name store.UserName) (store.User, error) {
	var user store.User
	err := s.db.WithContext(ctx).Where("name = ?", name.String()).Take(&user).Error
	return user, err
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("users service error", attrs...)
}
