package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	MessageKeyPrefix  = "message:%d"
	FollowerCountKey  = "user:%d:followers:count"
	FollowingCountKey = "user:%d:following:count"
)

const (
	UserTTL        = 5 * time.Minute
	MessageTTL     = 30 * time.Minute
	FollowCountTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func MessageKey(messageID uint) string {
	return fmt.Sprintf(MessageKeyPrefix, messageID)
}

func FollowerCount(userID uint) string {
	return fmt.Sprintf(FollowerCountKey, userID)
}

func FollowingCount(userID uint) string {
	return fmt.Sprintf(FollowingCountKey, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateMessage(ctx context.Context, messageID uint) {
	Invalidate(ctx, MessageKey(messageID))
}

// InvalidateFollowCounts drops both counters after a follow-graph change.
func InvalidateFollowCounts(ctx context.Context, userID uint) {
	Invalidate(ctx, FollowerCount(userID))
	Invalidate(ctx, FollowingCount(userID))
}
