package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"
	"order-router/internal/xpkg/password"
)

type StoreService struct {
	storeRepo core.IStoreRepo
	mylog     logger.Logger
}

func NewStoreService(storeRepo core.IStoreRepo, mylog logger.Logger) *StoreService {
	return &StoreService{
		storeRepo: storeRepo,
		mylog:     mylog,
	}
}

// Create registers a store. Only the password hash is persisted.
func (ss *StoreService) Create(ctx context.Context, req dto.CreateStoreRequest) (models.Store, error) {
	mylog := ss.mylog.Action("create_store")

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Store{}, fmt.Errorf("name: %w", core.ErrFieldIsEmpty)
	}
	if n := utf8.RuneCountInString(name); n < core.MinStoreNameLen || n > core.MaxStoreNameLen {
		return models.Store{}, fmt.Errorf("%w: store name length: %d, must be in range [%d, %d]", core.ErrValidation, n, core.MinStoreNameLen, core.MaxStoreNameLen)
	}
	if req.Password == "" {
		return models.Store{}, fmt.Errorf("password: %w", core.ErrFieldIsEmpty)
	}
	if n := utf8.RuneCountInString(req.Password); n < core.MinStorePasswordLen || n > core.MaxStorePasswordLen {
		return models.Store{}, fmt.Errorf("%w: password length must be in range [%d, %d]", core.ErrValidation, core.MinStorePasswordLen, core.MaxStorePasswordLen)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		mylog.Error("Failed to hash store password", err)
		return models.Store{}, err
	}

	store, err := ss.storeRepo.Create(ctx, name, hash)
	if err != nil {
		if errors.Is(err, core.ErrStoreExists) {
			mylog.Warn("Store name already taken", "name", name)
			return models.Store{}, err
		}
		mylog.Error("Failed to save store", err, "name", name)
		return models.Store{}, err
	}

	mylog.Info("Store created", "store_id", store.ID, "name", store.Name)
	return store, nil
}

func (ss *StoreService) List(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		stores, err = ss.storeRepo.List(ctx)
		return err
	})
	if err != nil {
		ss.mylog.Action("list_stores").Error("Failed to list stores", err)
		return nil, err
	}
	if stores == nil {
		stores = []models.Store{}
	}
	return stores, nil
}
