package service

import (
	"context"
	"sync"
	"time"

	"lobby/internal/model"
	"lobby/internal/util"
)

// MatchService 负责房间分配和玩家生命周期：登录/重连、匹配、离开、
// 断线宽限期后的移除。
//
// 复合变更（匹配要同时改房间座位和玩家引用，移除要先退房再删目录）
// 全部经由 mu 串行执行，等价于逐个处理事件；定时器回调也先拿锁再动手，
// 所以取消只要发生在回调拿到锁之前就一定有效。
type MatchService struct {
	rooms    *model.RoomManager
	players  *model.PlayerManager
	presence *PresenceService // 可为 nil
	grace    time.Duration
	mu       sync.Mutex
}

func NewMatchService(rooms *model.RoomManager, players *model.PlayerManager, presence *PresenceService, grace time.Duration) *MatchService {
	return &MatchService{
		rooms:    rooms,
		players:  players,
		presence: presence,
		grace:    grace,
	}
}

// Login 登录或重连
//
// 目录里已有同名玩家就当作重连：取消待执行的移除、换绑会话，座位原样
// 保留；旧会话如果还活着会被顶掉，返回它的 id 让调用方关闭旧连接。
func (ms *MatchService) Login(name, sessionID string) (p *model.Player, rejoined bool, oldSession string) {
	ms.mu.Lock()
	if existing, ok := ms.players.Get(name); ok {
		ms.cancelRemovalLocked(existing)
		oldSession = existing.SessionID
		existing.SessionID = sessionID
		ms.mu.Unlock()
		ms.markOnline(name, sessionID)
		return existing, true, oldSession
	}

	p = &model.Player{Name: name, SessionID: sessionID}
	ms.players.Add(p)
	ms.mu.Unlock()
	ms.markOnline(name, sessionID)
	return p, false, ""
}

// Distribute 给玩家分配一个房间
//
// 以 LastRoomID 为锚点做两段环形扫描：先按 id 升序找 id 更大的房间，
// 找不到再从头找 id 更小的，两段都只要遇到第一个有空位的就入座；
// 都没有就新建房间。这样反复匹配会把玩家摊到不同房间，也不会把刚
// 离开的人立刻塞回原房间。
func (ms *MatchService) Distribute(p *model.Player) *model.Room {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if p.RoomID != 0 {
		if room := ms.rooms.GetByID(p.RoomID); room != nil {
			return room // 已经在房间里，匹配是幂等的
		}
		p.RoomID = 0
	}

	last := p.LastRoomID
	snapshot := ms.rooms.Snapshot()
	for _, room := range snapshot {
		if room.ID > last && room.Seat(p.Name) {
			p.RoomID = room.ID
			return room
		}
	}
	for _, room := range snapshot {
		if room.ID < last && room.Seat(p.Name) {
			p.RoomID = room.ID
			return room
		}
	}

	room := ms.rooms.Create()
	room.Seat(p.Name)
	p.RoomID = room.ID
	return room
}

// OpponentSession 返回玩家的同房间对手的名字和当前会话 id。
// 会话 id 会被 Login/Disconnect 换绑，必须在锁内一次读出，
// 不把 Player 交给调用方在锁外摸字段
func (ms *MatchService) OpponentSession(p *model.Player) (name, sessionID string, ok bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if p.RoomID == 0 {
		return "", "", false
	}
	room := ms.rooms.GetByID(p.RoomID)
	if room == nil {
		return "", "", false
	}
	oppName := room.Opponent(p.Name)
	if oppName == "" {
		return "", "", false
	}
	opp, exists := ms.players.Get(oppName)
	if !exists {
		return "", "", false
	}
	return opp.Name, opp.SessionID, true
}

// LeaveRoom 玩家离开所在房间，两个座位都空了就删掉房间
func (ms *MatchService) LeaveRoom(p *model.Player) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.leaveRoomLocked(p)
}

func (ms *MatchService) leaveRoomLocked(p *model.Player) {
	if p.RoomID == 0 {
		return
	}
	if room := ms.rooms.GetByID(p.RoomID); room != nil {
		room.RemovePlayer(p.Name)
		if room.Empty() {
			ms.rooms.Delete(room)
			util.Logger.Infof("Room %d is empty, deleted", room.ID)
		}
	}
	p.LastRoomID = p.RoomID
	p.RoomID = 0
}

// RemovePlayer 把玩家从服务器移除（登出或宽限期到期都走这里）：
// 先退房，再从目录删除
func (ms *MatchService) RemovePlayer(p *model.Player) {
	ms.mu.Lock()
	ms.cancelRemovalLocked(p)
	ms.removeLocked(p)
	ms.mu.Unlock()
	ms.clearOnline(p.Name)
}

func (ms *MatchService) removeLocked(p *model.Player) {
	ms.leaveRoomLocked(p)
	ms.players.Remove(p.Name)
	p.SessionID = ""
}

// Disconnect 连接断开时调用；只有掉的是当前会话才启动宽限期定时器，
// 被新连接顶替过的旧会话断开不影响玩家
func (ms *MatchService) Disconnect(p *model.Player, sessionID string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if p.SessionID != sessionID {
		return false
	}
	p.SessionID = ""
	ms.armRemovalLocked(p)
	return true
}

// ArmRemoval 启动宽限期定时器；已有定时器时替换掉旧的
func (ms *MatchService) ArmRemoval(p *model.Player) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.armRemovalLocked(p)
}

func (ms *MatchService) armRemovalLocked(p *model.Player) {
	if p.PendingRemoval != nil {
		p.PendingRemoval.Stop()
	}
	p.RemovalGen++
	gen := p.RemovalGen
	p.PendingRemoval = time.AfterFunc(ms.grace, func() {
		ms.expire(p, gen)
	})
}

// CancelRemoval 取消待执行的移除，对已取消或已触发的定时器是空操作
func (ms *MatchService) CancelRemoval(p *model.Player) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cancelRemovalLocked(p)
}

func (ms *MatchService) cancelRemovalLocked(p *model.Player) {
	if p.PendingRemoval != nil {
		p.PendingRemoval.Stop()
		p.PendingRemoval = nil
	}
	// Stop 拦不住已经出发的回调，把代数也一并作废
	p.RemovalGen++
}

// expire 宽限期到点。回调和取消可能同时发生，拿到锁后用代数判断这个
// 定时器是否还算数，已取消或已被替换就什么都不做
func (ms *MatchService) expire(p *model.Player, gen uint64) {
	ms.mu.Lock()
	if p.RemovalGen != gen {
		ms.mu.Unlock()
		return
	}
	p.PendingRemoval = nil
	ms.removeLocked(p)
	ms.mu.Unlock()
	ms.clearOnline(p.Name)
	util.Logger.Infof("Player %s removed after grace period", p.Name)
}

// PlayerCount 当前在线玩家数（playerNum 查询用）
func (ms *MatchService) PlayerCount() int {
	return ms.players.Len()
}

func (ms *MatchService) markOnline(name, sessionID string) {
	if ms.presence == nil {
		return
	}
	if err := ms.presence.MarkOnline(context.Background(), name, sessionID); err != nil {
		util.Logger.Errorf("Failed to mark player %s online: %v", name, err)
	}
}

func (ms *MatchService) clearOnline(name string) {
	if ms.presence == nil {
		return
	}
	if err := ms.presence.Clear(context.Background(), name); err != nil {
		util.Logger.Errorf("Failed to clear presence for player %s: %v", name, err)
	}
}
