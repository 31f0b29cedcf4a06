package tagherald

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	columnUserUsername   = "username"
	columnUserGlobalName = "global_name"
	columnUserLastSeen   = "last_seen"
)

// User is a record of a Discord user that has interacted with the bot.
// See: https://discord.com/developers/docs/resources/user
type User struct {
	// ID is the Discord user ID
	ID string `json:"id" gorm:"primaryKey;unique;type:string"`

	// Username, not unique
	Username string `json:"username" gorm:"type:string"`

	// User's display name - for bots, the application name
	GlobalName string `json:"global_name" gorm:"type:string"`

	// Indicates this user is a Discord bot user
	Bot bool `json:"bot" gorm:"type:bool"`

	// LastSeen is the last time this user was seen in a Discord
	// interaction
	LastSeen int64 `json:"last_seen" gorm:"column:last_seen"`

	ModelUnixTime
}

func NewUser(u discordgo.User) *User {
	return &User{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		Bot:        u.Bot,
		LastSeen:   time.Now().UTC().UnixMilli(),
	}
}

func (u *User) String() string {
	return fmt.Sprintf("%s [%s]", u.Username, u.ID)
}

func (u User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID),
		slog.String("username", u.Username),
		slog.String("global_name", u.GlobalName),
	)
}
