package items

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestConcurrentInsertsKeepPositionsDense(t *testing.T) {
	service, db := newTestService(t)
	owner := store.User{Name: "Ash"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}

	const writers = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, writers)
	for index := 0; index < writers; index++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			name, err := store.NewItemName(fmt.Sprintf("item %d", index))
			if err != nil {
				failures <- err
				return
			}
			if _, err := service.Insert(context.Background(), NewItem{Name: name, Tier: store.TierB, OwnerID: store.UserID(owner.ID)}); err != nil {
				failures <- err
			}
		}(index)
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Fatalf("concurrent insert failed: %v", err)
	}

	grouped := mustList(t, service, store.UserID(owner.ID))
	if len(grouped[store.TierB]) != writers {
		t.Fatalf("expected %d items in tier B, got %d", writers, len(grouped[store.TierB]))
	}
	assertDense(t, grouped)
}

func TestBoardLockSelectsOwnerForUpdateOnPostgres(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=tierlist dbname=tierlist sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open dry-run postgres: %v", err)
	}

	var owners []store.User
	statement := boardLockQuery(db, 7).Find(&owners).Statement
	sql := statement.SQL.String()
	if !strings.Contains(sql, `FROM "users"`) || !strings.HasSuffix(sql, "FOR UPDATE") {
		t.Fatalf("expected a FOR UPDATE select on users, got %q", sql)
	}
	if len(statement.Vars) != 1 || statement.Vars[0] != int64(7) {
		t.Fatalf("expected owner id bound, got %v", statement.Vars)
	}
}
