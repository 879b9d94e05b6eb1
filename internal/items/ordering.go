package items

import (
	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// boardLockQuery selects the owner's user row FOR UPDATE. Every transaction that
// reads MAX(position) or rewrites positions takes it first, so writers to one
// board serialize on servers with row locks. SQLite drops the clause and relies
// on its single connection.
func boardLockQuery(tx *gorm.DB, ownerID int64) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Model(&store.User{}).Where("id = ?", ownerID)
}

func lockBoard(tx *gorm.DB, ownerID int64) error {
	var owners []store.User
	return boardLockQuery(tx, ownerID).Find(&owners).Error
}

func nextPosition(tx *gorm.DB, ownerID int64, tier store.Tier) (int64, error) {
	var next int64
	err := tx.Model(&store.Item{}).
		Where(queryOwnerIn, ownerID, tier).
		Select("COALESCE(MAX(position), -1) + 1").
		Scan(&next).Error
	return next, err
}

func compactPartition(tx *gorm.DB, ownerID int64, tier store.Tier) error {
	var members []store.Item
	if err := tx.Where(queryOwnerIn, ownerID, tier).Order(orderInTier).Find(&members).Error; err != nil {
		return err
	}
	return assignPositions(tx, members)
}

// assignPositions writes index i as the position of ordered[i], skipping rows
// already in place.
func assignPositions(tx *gorm.DB, ordered []store.Item) error {
	for index, item := range ordered {
		position := int64(index)
		if item.Position == position {
			continue
		}
		if err := tx.Model(&store.Item{}).Where(queryItemID, item.ID).Update("position", position).Error; err != nil {
			return err
		}
	}
	return nil
}

// mergeOrdering puts the requested members first, in request order and without
// duplicates, then the remaining members in their current order. Requested ids
// outside the partition are dropped.
func mergeOrdering(members []store.Item, requested []store.ItemID) []store.Item {
	byID := make(map[int64]store.Item, len(members))
	for _, member := range members {
		byID[member.ID] = member
	}

	ordered := make([]store.Item, 0, len(members))
	placed := make(map[int64]struct{}, len(members))
	for _, id := range requested {
		member, ok := byID[id.Int64()]
		if !ok {
			continue
		}
		if _, seen := placed[member.ID]; seen {
			continue
		}
		placed[member.ID] = struct{}{}
		ordered = append(ordered, member)
	}
	for _, member := range members {
		if _, seen := placed[member.ID]; seen {
			continue
		}
		ordered = append(ordered, member)
	}
	return ordered
}
