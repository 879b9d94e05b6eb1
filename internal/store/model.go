package store

// Item is a ranked entry on a user's board. Positions are dense and zero-based
// within each (user_id, tier) partition.
type Item struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"column:name;size:190;not null" json:"name"`
	Tier        Tier    `gorm:"column:tier;size:1;not null;check:chk_items_tier,tier IN ('S','A','B','C','D');index:idx_items_owner_tier_position,priority:2" json:"tier"`
	Image       *string `gorm:"column:image;size:512" json:"image"`
	Position    int64   `gorm:"column:position;not null;default:0;index:idx_items_owner_tier_position,priority:3" json:"position"`
	OwnerUserID int64   `gorm:"column:user_id;not null;index:idx_items_owner_tier_position,priority:1" json:"user_id"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "items"
}

// User owns items and authors chat messages.
type User struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;size:64;not null;uniqueIndex:idx_users_name" json:"name"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Vote is a voter's live re-tiering suggestion for one item.
type Vote struct {
	ID              int64 `gorm:"column:id;primaryKey;autoIncrement"`
	VoterUserID     int64 `gorm:"column:voter_user_id;not null;uniqueIndex:idx_votes_voter_item,priority:1"`
	ItemID          int64 `gorm:"column:item_id;not null;uniqueIndex:idx_votes_voter_item,priority:2;index:idx_votes_item"`
	TargetTier      Tier  `gorm:"column:target_tier;size:1;not null;check:chk_votes_target_tier,target_tier IN ('S','A','B','C','D')"`
	CreatedAtMillis int64 `gorm:"column:created_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}

// ChatMessage is an append-only chat line. The id is the feed cursor.
type ChatMessage struct {
	ID              int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64  `gorm:"column:user_id;not null;index"`
	Text            string `gorm:"column:text;type:text;not null"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// MetaFlag stores one-shot process flags such as the seed marker.
type MetaFlag struct {
	Key   string `gorm:"column:key;primaryKey;size:64;not null"`
	Value string `gorm:"column:value;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (MetaFlag) TableName() string {
	return "meta"
}

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{&User{}, &Item{}, &Vote{}, &ChatMessage{}, &MetaFlag{}}
}
