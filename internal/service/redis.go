package service

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PresenceService 在 Redis 里记录玩家在线信息，跨节点排查顶号用。
// 所有操作都是尽力而为，Redis 不可用不影响大厅本身
type PresenceService struct {
	client *redis.Client
	node   string // 本节点标识，写进在线信息里
}

func NewPresenceService(address, password string, db, poolSize int, node string) *PresenceService {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
	return &PresenceService{client: client, node: node}
}

// MarkOnline 记录玩家在本节点上线
func (ps *PresenceService) MarkOnline(ctx context.Context, name, sessionID string) error {
	return ps.client.Set(ctx, ps.playerKey(name), ps.node+"/"+sessionID, 0).Err()
}

// Clear 清除玩家的在线信息
func (ps *PresenceService) Clear(ctx context.Context, name string) error {
	return ps.client.Del(ctx, ps.playerKey(name)).Err()
}

// Lookup 查询玩家的在线信息，不在线返回空串
func (ps *PresenceService) Lookup(ctx context.Context, name string) (string, error) {
	val, err := ps.client.Get(ctx, ps.playerKey(name)).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return val, nil
}

func (ps *PresenceService) playerKey(name string) string {
	return "player:" + name + ":onlineInfo"
}
