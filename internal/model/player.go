package model

import (
	"sync"
	"time"
)

// Player 表示一个已登录的玩家
//
// RoomID/LastRoomID 用房间 id 做弱引用，房间本体归 RoomManager 所有。
// PendingRemoval 是断线宽限期定时器；RemovalGen 用来判定回调是否已被
// 取消或被新的定时器顶替。这几个字段都由 MatchService 的锁串行保护。
type Player struct {
	Name           string
	SessionID      string // 当前绑定的连接会话，空串表示已断线
	RoomID         int    // 0 表示不在任何房间
	LastRoomID     int    // 最近一次离开的房间 id，0 表示还没进过房间
	PendingRemoval *time.Timer
	RemovalGen     uint64
}

// PlayerManager 管理在线玩家，按名字索引，支持并发安全
type PlayerManager struct {
	players map[string]*Player // name -> Player
	mutex   sync.RWMutex
}

func NewPlayerManager() *PlayerManager {
	return &PlayerManager{
		players: make(map[string]*Player),
	}
}

func (pm *PlayerManager) Add(p *Player) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.players[p.Name] = p
}

func (pm *PlayerManager) Remove(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	delete(pm.players, name)
}

func (pm *PlayerManager) Get(name string) (*Player, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	p, exists := pm.players[name]
	return p, exists
}

func (pm *PlayerManager) Len() int {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()
	return len(pm.players)
}
