package items

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew  = "items.service.new"
	opInsert      = "items.insert"
	opMoveToTier  = "items.move_to_tier"
	opReorder     = "items.reorder"
	opUpdate      = "items.update"
	opDelete      = "items.delete"
	opListGrouped = "items.list_grouped"
	opDensify     = "items.densify"

	fieldItemID  = "item_id"
	fieldUserID  = "user_id"
	fieldTier    = "tier"
	queryItemID  = "id = ?"
	queryOwnerIn = "user_id = ? AND tier = ?"
	orderInTier  = "position ASC, id ASC"

	reasonMissingDatabase = "missing_database"
	reasonItemNotFound    = "item_not_found"
	reasonLookupFailed    = "lookup_failed"
	reasonInsertFailed    = "insert_failed"
	reasonUpdateFailed    = "update_failed"
	reasonDeleteFailed    = "delete_failed"
	reasonCompactFailed   = "compact_failed"
	reasonQueryFailed     = "query_failed"
	reasonEmptyOrdering   = "empty_ordering"
	reasonLockFailed      = "lock_failed"
)

// ServiceConfig describes the dependencies of the ordering service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service keeps item positions dense and ordered inside each (owner, tier) partition.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService validates dependencies and constructs the ordering service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// NewItem carries validated input for Insert.
type NewItem struct {
	Name    store.ItemName
	Tier    store.Tier
	Image   *string
	OwnerID store.UserID
}

// Insert appends a new item to the end of its (owner, tier) partition.
func (s *Service) Insert(ctx context.Context, input NewItem) (store.Item, error) {
	if s.db == nil {
		s.logError(opInsert, reasonMissingDatabase, errMissingDatabase)
		return store.Item{}, store.NewServiceError(opInsert, reasonMissingDatabase, errMissingDatabase)
	}
	if !input.Tier.Valid() {
		return store.Item{}, store.NewServiceError(opInsert, "invalid_tier", store.ErrInvalidTier)
	}

	var created store.Item
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBoard(tx, input.OwnerID.Int64()); err != nil {
			s.logError(opInsert, reasonLockFailed, err, zap.Int64(fieldUserID, input.OwnerID.Int64()))
			return store.NewServiceError(opInsert, reasonLockFailed, err)
		}
		next, err := nextPosition(tx, input.OwnerID.Int64(), input.Tier)
		if err != nil {
			s.logError(opInsert, reasonLookupFailed, err, zap.Int64(fieldUserID, input.OwnerID.Int64()))
			return store.NewServiceError(opInsert, reasonLookupFailed, err)
		}
		created = store.Item{
			Name:        input.Name.String(),
			Tier:        input.Tier,
			Image:       input.Image,
			Position:    next,
			OwnerUserID: input.OwnerID.Int64(),
		}
		if err := tx.Create(&created).Error; err != nil {
			s.logError(opInsert, reasonInsertFailed, err, zap.Int64(fieldUserID, input.OwnerID.Int64()))
			return store.NewServiceError(opInsert, reasonInsertFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return store.Item{}, txErr
	}
	return created, nil
}

// MoveToTier appends the item to the end of the target tier of its owner and
// compacts the partition it left. Moving within the same tier sends it to the end.
func (s *Service) MoveToTier(ctx context.Context, itemID store.ItemID, tier store.Tier) error {
	if s.db == nil {
		s.logError(opMoveToTier, reasonMissingDatabase, errMissingDatabase)
		return store.NewServiceError(opMoveToTier, reasonMissingDatabase, errMissingDatabase)
	}
	if !tier.Valid() {
		return store.NewServiceError(opMoveToTier, "invalid_tier", store.ErrInvalidTier)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.loadItem(tx, opMoveToTier, itemID)
		if err != nil {
			return err
		}
		return s.moveWithin(tx, opMoveToTier, item, tier)
	})
}

// ReorderRequest describes a caller-supplied ordering for one partition.
// A zero OwnerID means the owner of the first listed item.
type ReorderRequest struct {
	Tier       store.Tier
	OwnerID    store.UserID
	OrderedIDs []store.ItemID
}

// Reorder rewrites positions in (owner, tier) so listed members come first in
// the given order, followed by unlisted members in their previous order. Ids
// that are not members of the partition are ignored.
func (s *Service) Reorder(ctx context.Context, request ReorderRequest) error {
	if s.db == nil {
		s.logError(opReorder, reasonMissingDatabase, errMissingDatabase)
		return store.NewServiceError(opReorder, reasonMissingDatabase, errMissingDatabase)
	}
	if len(request.OrderedIDs) == 0 {
		return store.NewServiceError(opReorder, reasonEmptyOrdering, store.ErrInvalidInput)
	}
	if !request.Tier.Valid() {
		return store.NewServiceError(opReorder, "invalid_tier", store.ErrInvalidTier)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner := request.OwnerID.Int64()
		if owner == 0 {
			first, err := s.loadItem(tx, opReorder, request.OrderedIDs[0])
			if err != nil {
				return err
			}
			owner = first.OwnerUserID
		}
		if err := lockBoard(tx, owner); err != nil {
			s.logError(opReorder, reasonLockFailed, err, zap.Int64(fieldUserID, owner))
			return store.NewServiceError(opReorder, reasonLockFailed, err)
		}

		var members []store.Item
		if err := tx.Where(queryOwnerIn, owner, request.Tier).Order(orderInTier).Find(&members).Error; err != nil {
			s.logError(opReorder, reasonQueryFailed, err, zap.Int64(fieldUserID, owner), zap.String(fieldTier, request.Tier.String()))
			return store.NewServiceError(opReorder, reasonQueryFailed, err)
		}

		ordered := mergeOrdering(members, request.OrderedIDs)
		if err := assignPositions(tx, ordered); err != nil {
			s.logError(opReorder, reasonUpdateFailed, err, zap.Int64(fieldUserID, owner), zap.String(fieldTier, request.Tier.String()))
			return store.NewServiceError(opReorder, reasonUpdateFailed, err)
		}
		return nil
	})
}

// ImagePatch distinguishes "leave untouched" from "clear" and "set".
type ImagePatch struct {
	Set   bool
	Value *string
}

// Patch lists optional field changes; nil fields are left untouched.
type Patch struct {
	Name  *store.ItemName
	Image ImagePatch
	Tier  *store.Tier
}

// Update applies a tier move first, then patches name and image.
func (s *Service) Update(ctx context.Context, itemID store.ItemID, patch Patch) error {
	if s.db == nil {
		s.logError(opUpdate, reasonMissingDatabase, errMissingDatabase)
		return store.NewServiceError(opUpdate, reasonMissingDatabase, errMissingDatabase)
	}
	if patch.Tier != nil && !patch.Tier.Valid() {
		return store.NewServiceError(opUpdate, "invalid_tier", store.ErrInvalidTier)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.loadItem(tx, opUpdate, itemID)
		if err != nil {
			return err
		}
		if patch.Tier != nil {
			if err := s.moveWithin(tx, opUpdate, item, *patch.Tier); err != nil {
				return err
			}
		}

		updates := map[string]any{}
		if patch.Name != nil {
			updates["name"] = patch.Name.String()
		}
		if patch.Image.Set {
			updates["image"] = patch.Image.Value
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&store.Item{}).Where(queryItemID, itemID.Int64()).Updates(updates).Error; err != nil {
			s.logError(opUpdate, reasonUpdateFailed, err, zap.Int64(fieldItemID, itemID.Int64()))
			return store.NewServiceError(opUpdate, reasonUpdateFailed, err)
		}
		return nil
	})
}

// Delete removes the item's votes, the item, and closes the gap it leaves.
// Deleting an unknown id is a no-op.
func (s *Service) Delete(ctx context.Context, itemID store.ItemID) error {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDatabase, errMissingDatabase)
		return store.NewServiceError(opDelete, reasonMissingDatabase, errMissingDatabase)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.loadItem(tx, opDelete, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := lockBoard(tx, item.OwnerUserID); err != nil {
			s.logError(opDelete, reasonLockFailed, err, zap.Int64(fieldUserID, item.OwnerUserID))
			return store.NewServiceError(opDelete, reasonLockFailed, err)
		}
		if err := tx.Where("item_id = ?", item.ID).Delete(&store.Vote{}).Error; err != nil {
			s.logError(opDelete, reasonDeleteFailed, err, zap.Int64(fieldItemID, item.ID))
			return store.NewServiceError(opDelete, reasonDeleteFailed, err)
		}
		if err := tx.Where(queryItemID, item.ID).Delete(&store.Item{}).Error; err != nil {
			s.logError(opDelete, reasonDeleteFailed, err, zap.Int64(fieldItemID, item.ID))
			return store.NewServiceError(opDelete, reasonDeleteFailed, err)
		}
		if err := compactPartition(tx, item.OwnerUserID, item.Tier); err != nil {
			s.logError(opDelete, reasonCompactFailed, err, zap.Int64(fieldUserID, item.OwnerUserID), zap.String(fieldTier, item.Tier.String()))
			return store.NewServiceError(opDelete, reasonCompactFailed, err)
		}
		return nil
	})
}

// Grouped holds every tier's items ordered by (position, id).
type Grouped map[store.Tier][]store.Item

// ListGrouped returns the owner's board, or every owner's items when owner is nil.
func (s *Service) ListGrouped(ctx context.Context, owner *store.UserID) (Grouped, error) {
	if s.db == nil {
		s.logError(opListGrouped, reasonMissingDatabase, errMissingDatabase)
		return nil, store.NewServiceError(opListGrouped, reasonMissingDatabase, errMissingDatabase)
	}

	query := s.db.WithContext(ctx).Model(&store.Item{})
	if owner != nil {
		query = query.Where("user_id = ?", owner.Int64())
	}
	var rows []store.Item
	if err := query.Order("tier ASC, " + orderInTier).Find(&rows).Error; err != nil {
		s.logError(opListGrouped, reasonQueryFailed, err)
		return nil, store.NewServiceError(opListGrouped, reasonQueryFailed, err)
	}

	grouped := make(Grouped, len(store.Tiers))
	for _, tier := range store.Tiers {
		grouped[tier] = []store.Item{}
	}
	for _, row := range rows {
		if _, ok := grouped[row.Tier]; !ok {
			continue
		}
		grouped[row.Tier] = append(grouped[row.Tier], row)
	}
	return grouped, nil
}

// Densify rewrites every (owner, tier) partition to positions 0..n-1, keeping
// the existing (position, id) order.
func Densify(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return store.NewServiceError(opDensify, reasonMissingDatabase, errMissingDatabase)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []store.Item
		if err := tx.Order("user_id ASC, tier ASC, " + orderInTier).Find(&rows).Error; err != nil {
			return store.NewServiceError(opDensify, reasonQueryFailed, err)
		}
		start := 0
		for index := 1; index <= len(rows); index++ {
			if index < len(rows) && rows[index].OwnerUserID == rows[start].OwnerUserID && rows[index].Tier == rows[start].Tier {
				continue
			}
			if err := assignPositions(tx, rows[start:index]); err != nil {
				return store.NewServiceError(opDensify, reasonUpdateFailed, err)
			}
			start = index
		}
		return nil
	})
}

func (s *Service) loadItem(tx *gorm.DB, operation string, itemID store.ItemID) (store.Item, error) {
	var item store.Item
	err := tx.Where(queryItemID, itemID.Int64()).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Item{}, store.NewServiceError(operation, reasonItemNotFound, store.ErrNotFound)
	}
	if err != nil {
		s.logError(operation, reasonLookupFailed, err, zap.Int64(fieldItemID, itemID.Int64()))
		return store.Item{}, store.NewServiceError(operation, reasonLookupFailed, err)
	}
	return item, nil
}

func (s *Service) moveWithin(tx *gorm.DB, operation string, item store.Item, tier store.Tier) error {
	if err := lockBoard(tx, item.OwnerUserID); err != nil {
		s.logError(operation, reasonLockFailed, err, zap.Int64(fieldUserID, item.OwnerUserID))
		return store.NewServiceError(operation, reasonLockFailed, err)
	}
	next, err := nextPosition(tx, item.OwnerUserID, tier)
	if err != nil {
		s.logError(operation, reasonLookupFailed, err, zap.Int64(fieldItemID, item.ID))
		return store.NewServiceError(operation, reasonLookupFailed, err)
	}
	if err := tx.Model(&store.Item{}).Where(queryItemID, item.ID).
		Updates(map[string]any{"tier": tier, "position": next}).Error; err != nil {
		s.logError(operation, reasonUpdateFailed, err, zap.Int64(fieldItemID, item.ID))
		return store.NewServiceError(operation, reasonUpdateFailed, err)
	}
	if err := compactPartition(tx, item.OwnerUserID, item.Tier); err != nil {
		s.logError(operation, reasonCompactFailed, err, zap.Int64(fieldUserID, item.OwnerUserID), zap.String(fieldTier, item.Tier.String()))
		return store.NewServiceError(operation, reasonCompactFailed, err)
	}
	return nil
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
	s.loggerOrDefault().Error("items service error", attrs...)
}
