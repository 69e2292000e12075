package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediabridge/logger"
	"mediabridge/model"

	"github.com/go-redis/redis/v8"
)

const (
	playerInfoKey   = "media:player:%s" // String: PlayerInfo JSON
	snapshotsKey    = "media:snapshots" // String: []PlaybackSnapshot JSON
	mediaEventsChan = "media:events"    // Pub/Sub: {"type":"media_updated"}

	// MediaUpdatedEvent 会话变化事件名
	MediaUpdatedEvent = "media_updated"
)

// MediaEvent 通过 Pub/Sub 广播的事件
type MediaEvent struct {
	Type string `json:"type"`
}

// MediaCache 媒体会话缓存操作
type MediaCache struct {
	client        *redis.Client
	playerInfoTTL time.Duration
	snapshotTTL   time.Duration
}

// NewMediaCache 创建媒体缓存，client 为 nil 时所有操作返回 ErrNotInitialized
func NewMediaCache(client *redis.Client, playerInfoTTL, snapshotTTL time.Duration) *MediaCache {
	return &MediaCache{
		client:        client,
		playerInfoTTL: playerInfoTTL,
		snapshotTTL:   snapshotTTL,
	}
}

// ========== 播放器信息 ==========

// GetPlayerInfo 获取缓存的播放器名称和图标，未命中时返回 (nil, nil)
func (c *MediaCache) GetPlayerInfo(ctx context.Context, playerID string) (*model.PlayerInfo, error) {
	if c.client == nil {
		return nil, ErrNotInitialized
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(playerInfoKey, playerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player info: %w", err)
	}

	var info model.PlayerInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player info: %w", err)
	}
	return &info, nil
}

// SetPlayerInfo 缓存播放器信息
func (c *MediaCache) SetPlayerInfo(ctx context.Context, playerID string, info model.PlayerInfo) error {
	if c.client == nil {
		return ErrNotInitialized
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal player info: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(playerInfoKey, playerID), data, c.playerInfoTTL).Err()
}

// ========== 快照 ==========

// SaveSnapshots 保存最近一次轮询结果
func (c *MediaCache) SaveSnapshots(ctx context.Context, snapshots []model.PlaybackSnapshot) error {
	if c.client == nil {
		return ErrNotInitialized
	}

	data, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	return c.client.Set(ctx, snapshotsKey, data, c.snapshotTTL).Err()
}

// LastSnapshots 读取最近一次轮询结果，不存在时返回 (nil, nil)
func (c *MediaCache) LastSnapshots(ctx context.Context) ([]model.PlaybackSnapshot, error) {
	if c.client == nil {
		return nil, ErrNotInitialized
	}

	data, err := c.client.Get(ctx, snapshotsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	var snapshots []model.PlaybackSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshots: %w", err)
	}
	return snapshots, nil
}

// ========== 事件 ==========

// PublishUpdated 广播 media_updated 事件
func (c *MediaCache) PublishUpdated(ctx context.Context) error {
	if c.client == nil {
		return ErrNotInitialized
	}

	data, _ := json.Marshal(MediaEvent{Type: MediaUpdatedEvent})
	return c.client.Publish(ctx, mediaEventsChan, data).Err()
}

// SubscribeUpdated 订阅 media_updated 事件，返回的 cancel 用于退订
func (c *MediaCache) SubscribeUpdated(ctx context.Context) (<-chan struct{}, func(), error) {
	if c.client == nil {
		return nil, nil, ErrNotInitialized
	}

	pubsub := c.client.Subscribe(ctx, mediaEventsChan)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe media events: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event MediaEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil || event.Type != MediaUpdatedEvent {
				logger.Debug("ignoring media event", logger.String("payload", msg.Payload))
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, func() { pubsub.Close() }, nil
}
