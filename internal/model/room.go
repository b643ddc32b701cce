package model

import (
	"sort"
	"sync"
)

// Room 一个对局房间，固定两个座位
//
// 座位上存玩家名而不是 *Player，玩家本体归 PlayerManager 所有。
// 座位的增删都经过 MatchService 串行执行，结构体本身不带锁。
type Room struct {
	ID      int
	Player1 string // 空串表示空位
	Player2 string
}

// Seat 把玩家放进第一个空位，没有空位返回 false
func (r *Room) Seat(name string) bool {
	if r.Player1 == "" {
		r.Player1 = name
		return true
	}
	if r.Player2 == "" {
		r.Player2 = name
		return true
	}
	return false
}

// RemovePlayer 清空该玩家占的座位，玩家不在房间里返回 false
func (r *Room) RemovePlayer(name string) bool {
	if r.Player1 == name {
		r.Player1 = ""
		return true
	}
	if r.Player2 == name {
		r.Player2 = ""
		return true
	}
	return false
}

// Opponent 返回同房间另一个座位上的玩家名，可能是空串
func (r *Room) Opponent(name string) string {
	if r.Player1 == name {
		return r.Player2
	}
	if r.Player2 == name {
		return r.Player1
	}
	return ""
}

func (r *Room) Empty() bool {
	return r.Player1 == "" && r.Player2 == ""
}

func (r *Room) Full() bool {
	return r.Player1 != "" && r.Player2 != ""
}

// RoomManager 管理所有房间，支持并发安全
//
// rooms 始终按 id 升序：id 由单调递增的计数器分配，新房间只会追加到
// 尾部，所以插入天然保序，查找和删除都走二分。
type RoomManager struct {
	rooms  []*Room
	nextID int
	mutex  sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{}
}

// Create 分配下一个房间 id 并创建房间，总是成功
func (rm *RoomManager) Create() *Room {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.nextID++
	room := &Room{ID: rm.nextID}
	rm.rooms = append(rm.rooms, room)
	return room
}

// GetByID 二分查找房间，不存在返回 nil
func (rm *RoomManager) GetByID(id int) *Room {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	if i := rm.search(id); i >= 0 {
		return rm.rooms[i]
	}
	return nil
}

// IndexOf 返回房间在升序序列中的位置，不存在返回 -1
func (rm *RoomManager) IndexOf(id int) int {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return rm.search(id)
}

// Delete 删除房间，返回是否真的删掉了
func (rm *RoomManager) Delete(room *Room) bool {
	if room == nil {
		return false
	}
	return rm.DeleteByID(room.ID)
}

// DeleteByID 按 id 删除房间；id 不存在不是错误，返回 false 即可
func (rm *RoomManager) DeleteByID(id int) bool {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	i := rm.search(id)
	if i < 0 {
		return false
	}
	rm.rooms = append(rm.rooms[:i], rm.rooms[i+1:]...)
	return true
}

func (rm *RoomManager) Len() int {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	return len(rm.rooms)
}

// Snapshot 返回当前房间序列的升序副本，供匹配扫描用
func (rm *RoomManager) Snapshot() []*Room {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	out := make([]*Room, len(rm.rooms))
	copy(out, rm.rooms)
	return out
}

// search 调用方需持有锁
func (rm *RoomManager) search(id int) int {
	i := sort.Search(len(rm.rooms), func(i int) bool {
		return rm.rooms[i].ID >= id
	})
	if i < len(rm.rooms) && rm.rooms[i].ID == id {
		return i
	}
	return -1
}
