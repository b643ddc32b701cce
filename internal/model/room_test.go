package model_test

import (
	"sort"
	"testing"

	"lobby/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomSeats(t *testing.T) {
	room := &model.Room{ID: 1}
	assert.True(t, room.Empty())
	assert.False(t, room.Full())

	require.True(t, room.Seat("ann"))
	assert.False(t, room.Empty())
	require.True(t, room.Seat("bo"))
	assert.True(t, room.Full())

	// 满了之后不能再坐
	assert.False(t, room.Seat("cy"))

	assert.Equal(t, "bo", room.Opponent("ann"))
	assert.Equal(t, "ann", room.Opponent("bo"))
	assert.Equal(t, "", room.Opponent("cy"))

	assert.True(t, room.RemovePlayer("ann"))
	assert.False(t, room.RemovePlayer("ann")) // 已经不在房间里
	assert.Equal(t, "", room.Opponent("bo"))

	assert.True(t, room.RemovePlayer("bo"))
	assert.True(t, room.Empty())
}

func TestRoomManager_CreateAssignsIncreasingIDs(t *testing.T) {
	rm := model.NewRoomManager()

	var ids []int
	for i := 0; i < 10; i++ {
		ids = append(ids, rm.Create().ID)
	}

	// id 严格递增，序列保持升序
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
	snapshot := rm.Snapshot()
	assert.True(t, sort.SliceIsSorted(snapshot, func(i, j int) bool {
		return snapshot[i].ID < snapshot[j].ID
	}))
	assert.Equal(t, 10, rm.Len())
}

func TestRoomManager_Lookup(t *testing.T) {
	rm := model.NewRoomManager()

	// 空注册表
	assert.Nil(t, rm.GetByID(1))
	assert.Equal(t, -1, rm.IndexOf(1))

	r1 := rm.Create()
	r2 := rm.Create()
	r3 := rm.Create()

	assert.Same(t, r2, rm.GetByID(r2.ID))
	assert.Equal(t, 0, rm.IndexOf(r1.ID))
	assert.Equal(t, 2, rm.IndexOf(r3.ID))

	// 从未分配过的 id
	assert.Nil(t, rm.GetByID(99))
	assert.Equal(t, -1, rm.IndexOf(99))
}

func TestRoomManager_Delete(t *testing.T) {
	rm := model.NewRoomManager()
	r1 := rm.Create()
	r2 := rm.Create()
	r3 := rm.Create()

	require.True(t, rm.DeleteByID(r2.ID))
	assert.Nil(t, rm.GetByID(r2.ID))
	assert.Equal(t, 2, rm.Len())

	// 已删除的 id 再删一次只是返回 false，不是错误
	assert.False(t, rm.DeleteByID(r2.ID))

	// 删除后仍然有序，剩余房间可查
	snapshot := rm.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, r1.ID, snapshot[0].ID)
	assert.Equal(t, r3.ID, snapshot[1].ID)

	assert.True(t, rm.Delete(r1))
	assert.True(t, rm.Delete(r3))
	assert.False(t, rm.Delete(nil))
	assert.Equal(t, 0, rm.Len())

	// 清空后新建的房间 id 接着涨，不回收
	r4 := rm.Create()
	assert.Greater(t, r4.ID, r3.ID)
}
