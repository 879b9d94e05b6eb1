package votes

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew       = "votes.service.new"
	opCast             = "votes.cast"
	opAggregateByOwner = "votes.aggregate_for_owner"

	reasonMissingDatabase = "missing_database"
	reasonVoterNotFound   = "voter_not_found"
	reasonItemNotFound    = "item_not_found"
	reasonLookupFailed    = "lookup_failed"
	reasonUpsertFailed    = "upsert_failed"
	reasonQueryFailed     = "query_failed"
)

// ServiceConfig describes the dependencies of the vote aggregator.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service records one live vote per (voter, item) and aggregates them per board.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates dependencies and constructs the vote aggregator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Cast inserts or overwrites the voter's suggestion for the item.
func (s *Service) Cast(ctx context.Context, voter store.UserID, itemID store.ItemID, target store.Tier) error {
	if s.db == nil {
		s.logError(opCast, reasonMissingDatabase, errMissingDatabase)
		return store.NewServiceError(opCast, reasonMissingDatabase, errMissingDatabase)
	}
	if !target.Valid() {
		return store.NewServiceError(opCast, "invalid_tier", store.ErrInvalidTier)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireRow(tx, &store.User{}, voter.Int64(), reasonVoterNotFound); err != nil {
			return err
		}
		if err := s.requireRow(tx, &store.Item{}, itemID.Int64(), reasonItemNotFound); err != nil {
			return err
		}

		vote := store.Vote{
			VoterUserID:     voter.Int64(),
			ItemID:          itemID.Int64(),
			TargetTier:      target,
			CreatedAtMillis: s.clock().UTC().UnixMilli(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "voter_user_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"target_tier", "created_at_ms"}),
		}).Create(&vote).Error
		if err != nil {
			s.logError(opCast, reasonUpsertFailed, err,
				zap.Int64("voter_user_id", voter.Int64()),
				zap.Int64("item_id", itemID.Int64()))
			return store.NewServiceError(opCast, reasonUpsertFailed, err)
		}
		return nil
	})
}

// Aggregate maps item id to per-tier vote counts.
type Aggregate map[int64]map[store.Tier]int64

type aggregateRow struct {
	ItemID     int64
	TargetTier store.Tier
	Count      int64
}

// AggregateForOwner counts live votes on the items currently owned by owner.
func (s *Service) AggregateForOwner(ctx context.Context, owner store.UserID) (Aggregate, error) {
	if s.db == nil {
		s.logError(opAggregateByOwner, reasonMissingDatabase, errMissingDatabase)
		return nil, store.NewServiceError(opAggregateByOwner, reasonMissingDatabase, errMissingDatabase)
	}

	var rows []aggregateRow
	err := s.db.WithContext(ctx).
		Table("votes AS v").
		Select("v.item_id AS item_id, v.target_tier AS target_tier, COUNT(*) AS count").
		Joins("JOIN items AS i ON i.id = v.item_id").
		Where("i.user_id = ?", owner.Int64()).
		Group("v.item_id, v.target_tier").
		Scan(&rows).Error
	if err != nil {
		s.logError(opAggregateByOwner, reasonQueryFailed, err, zap.Int64("user_id", owner.Int64()))
		return nil, store.NewServiceError(opAggregateByOwner, reasonQueryFailed, err)
	}

	aggregate := make(Aggregate, len(rows))
	for _, row := range rows {
		counts, ok := aggregate[row.ItemID]
		if !ok {
			counts = make(map[store.Tier]int64, len(store.Tiers))
			aggregate[row.ItemID] = counts
		}
		counts[row.TargetTier] = row.Count
	}
	return aggregate, nil
}

func (s *Service) requireRow(tx *gorm.DB, model any, id int64, missingReason string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		s.logError(opCast, reasonLookupFailed, err, zap.Int64("id", id))
		return store.NewServiceError(opCast, reasonLookupFailed, err)
	}
	if count == 0 {
		return store.NewServiceError(opCast, missingReason, store.ErrNotFound)
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
	s.loggerOrDefault().Error("votes service error", attrs...)
}
