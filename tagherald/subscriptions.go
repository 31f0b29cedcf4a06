package tagherald

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm/clause"
)

// Tag is a forum tag as known to the subscription store. Rows are
// upserted from the channel's tag vocabulary by SyncTags - the
// directory defines tags, the store only mirrors them.
type Tag struct {
	ModelUintID
	ModelUnixTime

	// Name is the tag name, unique within the channel's vocabulary
	Name string `json:"name" gorm:"uniqueIndex;not null;default:null"`

	// DiscordID is the snowflake ID discord assigned the forum tag
	DiscordID string `json:"discord_id" gorm:"index;type:string"`

	// EmojiName is the unicode emoji shown next to the tag, if any
	EmojiName string `json:"emoji_name" gorm:"type:string"`

	// Moderated indicates only moderators can apply the tag to threads
	Moderated bool `json:"moderated" gorm:"type:bool"`
}

// Subscription relates a Discord user ID to a tag name. A user has at
// most one subscription per tag.
//
//nolint:lll // struct tags can't be split
type Subscription struct {
	ModelUintID
	ModelUnixTime

	UserID  string `json:"user_id" gorm:"index;not null;default:null;uniqueIndex:idx_subscription_user_tag"`
	TagName string `json:"tag_name" gorm:"not null;default:null;uniqueIndex:idx_subscription_user_tag"`
}

// SubscriptionStore is the persistence layer for user-tag subscription
// relations, and the mirrored tag vocabulary.
type SubscriptionStore interface {
	// Subscriptions returns the set of tag names the given user is
	// subscribed to
	Subscriptions(ctx context.Context, userID string) (map[string]bool, error)

	// Subscribe adds subscriptions for the given tag names. Already
	// subscribed names are ignored.
	Subscribe(ctx context.Context, userID string, tagNames []string) error

	// Unsubscribe removes subscriptions for the given tag names.
	// Names the user isn't subscribed to are ignored.
	Unsubscribe(ctx context.Context, userID string, tagNames []string) error

	// Subscribers returns the IDs of users subscribed to any of the
	// given tag names, in order of first subscription
	Subscribers(ctx context.Context, tagNames []string) ([]string, error)

	// SyncTags upserts the full tag vocabulary, unchanged
	SyncTags(ctx context.Context, tags []discordgo.ForumTag) error
}

func (d *database) Subscriptions(
	ctx context.Context,
	userID string,
) (map[string]bool, error) {
	var names []string
	err := d.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ?", userID).
		Pluck("tag_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("error getting subscriptions: %w", err)
	}
	subscribed := make(map[string]bool, len(names))
	for _, name := range names {
		subscribed[name] = true
	}
	return subscribed, nil
}

func (d *database) Subscribe(
	ctx context.Context,
	userID string,
	tagNames []string,
) error {
	if len(tagNames) == 0 {
		return nil
	}
	subscriptions := make([]Subscription, len(tagNames))
	for i, name := range tagNames {
		subscriptions[i] = Subscription{UserID: userID, TagName: name}
	}

	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	err := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "tag_name"},
			},
			DoNothing: true,
		},
	).Create(&subscriptions).Error
	if err != nil {
		return fmt.Errorf("error creating subscriptions: %w", err)
	}
	return nil
}

func (d *database) Unsubscribe(
	ctx context.Context,
	userID string,
	tagNames []string,
) error {
	if len(tagNames) == 0 {
		return nil
	}
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND tag_name IN ?", userID, tagNames).
		Unscoped().
		Delete(&Subscription{}).Error
	if err != nil {
		return fmt.Errorf("error deleting subscriptions: %w", err)
	}
	return nil
}

func (d *database) Subscribers(
	ctx context.Context,
	tagNames []string,
) ([]string, error) {
	if len(tagNames) == 0 {
		return nil, nil
	}
	var userIDs []string
	err := d.db.WithContext(ctx).
		Model(&Subscription{}).
		Distinct("user_id").
		Where("tag_name IN ?", tagNames).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("error getting subscribers: %w", err)
	}
	return userIDs, nil
}

// SyncTags passes the tag vocabulary through to the store unchanged,
// upserting on tag name.
func (d *database) SyncTags(
	ctx context.Context,
	tags []discordgo.ForumTag,
) error {
	if len(tags) == 0 {
		return nil
	}
	records := make([]Tag, len(tags))
	for i, tag := range tags {
		records[i] = Tag{
			Name:      tag.Name,
			DiscordID: tag.ID,
			EmojiName: tag.EmojiName,
			Moderated: tag.Moderated,
		}
	}

	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	err := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(
				[]string{"discord_id", "emoji_name", "moderated", "updated_at"},
			),
		},
	).Create(&records).Error
	if err != nil {
		return fmt.Errorf("error syncing tags: %w", err)
	}
	return nil
}
