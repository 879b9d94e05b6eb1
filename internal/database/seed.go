package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const metaKeySeeded = "seeded"

//go:embed seed.yaml
var seedFixture []byte

type seedFile struct {
	Users []string   `yaml:"users"`
	Items []seedItem `yaml:"items"`
}

type seedItem struct {
	Name  string `yaml:"name"`
	Tier  string `yaml:"tier"`
	Image string `yaml:"image"`
}

// SeedResult reports what a Seed call wrote.
type SeedResult struct {
	UsersCreated int
	ItemsCreated int
}

func loadSeedFile(raw []byte) (seedFile, error) {
	var fixture seedFile
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return seedFile{}, fmt.Errorf("decode seed fixture: %w", err)
	}
	for _, item := range fixture.Items {
		if _, err := store.ParseTier(item.Tier); err != nil {
			return seedFile{}, fmt.Errorf("seed item %q: %w", item.Name, err)
		}
	}
	return fixture, nil
}

// Seed creates demo users when the user table is empty and, once per store,
// demo items for the first user. The meta "seeded" flag keeps reruns idempotent.
func Seed(ctx context.Context, db *gorm.DB, logger *zap.Logger) (SeedResult, error) {
	fixture, err := loadSeedFile(seedFixture)
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userCount int64
		if err := tx.Model(&store.User{}).Count(&userCount).Error; err != nil {
			return err
		}
		if userCount == 0 {
			for _, name := range fixture.Users {
				if err := tx.Create(&store.User{Name: name}).Error; err != nil {
					return err
				}
				result.UsersCreated++
			}
		}

		var flag store.MetaFlag
		err := tx.Where(&store.MetaFlag{Key: metaKeySeeded}).Take(&flag).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var defaultUser store.User
		if err := tx.Order("id ASC").Take(&defaultUser).Error; err != nil {
			return err
		}

		var itemCount int64
		if err := tx.Model(&store.Item{}).Count(&itemCount).Error; err != nil {
			return err
		}
		if itemCount == 0 {
			positions := make(map[store.Tier]int64, len(store.Tiers))
			for _, entry := range fixture.Items {
				tier := store.Tier(entry.Tier)
				image := entry.Image
				item := store.Item{
					Name:        entry.Name,
					Tier:        tier,
					Image:       &image,
					Position:    positions[tier],
					OwnerUserID: defaultUser.ID,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
				positions[tier]++
				result.ItemsCreated++
			}
		}

		return tx.Create(&store.MetaFlag{Key: metaKeySeeded, Value: "1"}).Error
	})
	if txErr != nil {
		return SeedResult{}, txErr
	}

	if logger != nil && (result.UsersCreated > 0 || result.ItemsCreated > 0) {
		logger.Info("database seeded",
			zap.Int("users_created", result.UsersCreated),
			zap.Int("items_created", result.ItemsCreated))
	}
	return result, nil
}
