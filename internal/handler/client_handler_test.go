package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"lobby/internal/config"
	"lobby/internal/handler"
	"lobby/internal/model"
	"lobby/internal/service"
	"lobby/internal/util"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// 测试时只看错误日志
	util.Logger.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, loginIntercept bool) (*httptest.Server, *service.MatchService) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.LoginIntercept = loginIntercept

	rooms := model.NewRoomManager()
	players := model.NewPlayerManager()
	match := service.NewMatchService(rooms, players, nil, time.Minute)
	ch := handler.NewClientHandler(cfg, match, service.PassthroughAuth{}, nil)

	srv := httptest.NewServer(http.HandlerFunc(ch.ServeWS))
	t.Cleanup(srv.Close)
	return srv, match
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, parts ...any) {
	t.Helper()
	frame, err := json.Marshal(parts)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func recv(t *testing.T, conn *websocket.Conn) (string, []json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var parts []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &parts))
	require.NotEmpty(t, parts)

	var name string
	require.NoError(t, json.Unmarshal(parts[0], &name))
	return name, parts[1:]
}

func login(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	send(t, conn, "login", map[string]string{"name": name, "password": "pw"}, 1)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)

	var result struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(rest[1], &result))
	require.True(t, result.OK)
}

func TestGateRejectsUnauthenticatedEvents(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dial(t, srv)

	// 未登录发 move，只会收到 login 提示，连接不断
	send(t, conn, "move", map[string]any{"x": 1, "y": 2})
	ev, rest := recv(t, conn)
	assert.Equal(t, "login", ev)
	require.Len(t, rest, 1)
	assert.Equal(t, "null", string(rest[0]))

	// 软拒绝可以一直重试
	send(t, conn, "move", nil)
	ev, _ = recv(t, conn)
	assert.Equal(t, "login", ev)

	// 白名单里的 login 正常放行
	login(t, conn, "ann")
}

func TestGateAllowsWhitelistedEventsBeforeLogin(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dial(t, srv)

	// register 在白名单里，会被转给账号钩子而不是拦截
	send(t, conn, "register", map[string]string{"name": "ann", "password": "pw"}, 1)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rest[1], &result))
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Message)
}

func TestGateDisabled(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dial(t, srv)

	// 拦截关闭时未登录也能查询
	send(t, conn, "playerNum", nil, 5)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)
	assert.Equal(t, "5", string(rest[0]))
	assert.JSONEq(t, `{"num":0}`, string(rest[1]))
}

func TestPlayerNumAck(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dial(t, srv)
	login(t, conn, "ann")

	send(t, conn, "playerNum", nil, 9)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)
	assert.Equal(t, "9", string(rest[0]))
	assert.JSONEq(t, `{"num":1}`, string(rest[1]))
}

func TestMatchRoomPairsTwoPlayers(t *testing.T) {
	srv, _ := newTestServer(t, true)

	ann := dial(t, srv)
	bo := dial(t, srv)
	login(t, ann, "ann")
	login(t, bo, "bo")

	var result struct {
		RoomID   int    `json:"roomId"`
		Opponent string `json:"opponent"`
	}

	send(t, ann, "matchRoom", nil, 1)
	ev, rest := recv(t, ann)
	require.Equal(t, "ack", ev)
	require.NoError(t, json.Unmarshal(rest[1], &result))
	assert.Equal(t, 1, result.RoomID)
	assert.Equal(t, "", result.Opponent)

	send(t, bo, "matchRoom", nil, 1)
	ev, rest = recv(t, bo)
	require.Equal(t, "ack", ev)
	require.NoError(t, json.Unmarshal(rest[1], &result))
	assert.Equal(t, 1, result.RoomID)
	assert.Equal(t, "ann", result.Opponent)

	// 先进房的一方收到对手进房通知
	ev, rest = recv(t, ann)
	require.Equal(t, "playerJoined", ev)
	assert.JSONEq(t, `{"name":"bo","roomId":1}`, string(rest[0]))
}

func TestLeaveRoomNotifiesOpponent(t *testing.T) {
	srv, match := newTestServer(t, true)

	ann := dial(t, srv)
	bo := dial(t, srv)
	login(t, ann, "ann")
	login(t, bo, "bo")

	send(t, ann, "matchRoom", nil, 1)
	recv(t, ann)
	send(t, bo, "matchRoom", nil, 1)
	recv(t, bo)
	recv(t, ann) // playerJoined

	send(t, bo, "leaveRoom", nil, 2)
	ev, _ := recv(t, bo)
	require.Equal(t, "ack", ev)

	ev, rest := recv(t, ann)
	require.Equal(t, "playerLeft", ev)
	assert.JSONEq(t, `{"name":"bo","roomId":1}`, string(rest[0]))

	// 还有人，房间保留；人数不变
	assert.Equal(t, 2, match.PlayerCount())
}

func TestLogoutRemovesPlayer(t *testing.T) {
	srv, match := newTestServer(t, true)
	conn := dial(t, srv)
	login(t, conn, "ann")

	send(t, conn, "matchRoom", nil, 1)
	recv(t, conn)
	require.Equal(t, 1, match.PlayerCount())

	send(t, conn, "logout", nil, 2)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)
	assert.JSONEq(t, `{"ok":true}`, string(rest[1]))
	assert.Equal(t, 0, match.PlayerCount())

	// 登出后回到未登录状态，再发事件会收到 login 提示
	send(t, conn, "playerNum", nil, 3)
	ev, _ = recv(t, conn)
	assert.Equal(t, "login", ev)
}

func TestDuplicateLoginClosesOldSession(t *testing.T) {
	srv, match := newTestServer(t, true)

	first := dial(t, srv)
	login(t, first, "ann")

	second := dial(t, srv)
	send(t, second, "login", map[string]string{"name": "ann", "password": "pw"}, 1)
	ev, rest := recv(t, second)
	require.Equal(t, "ack", ev)

	var result struct {
		OK       bool `json:"ok"`
		Rejoined bool `json:"rejoined"`
	}
	require.NoError(t, json.Unmarshal(rest[1], &result))
	assert.True(t, result.OK)
	assert.True(t, result.Rejoined)

	// 旧连接被服务器关闭
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	// 顶号不算下线，玩家还在
	assert.Equal(t, 1, match.PlayerCount())
}

func TestReloginWithNewNameLogsOutOldPlayer(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.LoginIntercept = true

	rooms := model.NewRoomManager()
	players := model.NewPlayerManager()
	match := service.NewMatchService(rooms, players, nil, 20*time.Millisecond)
	ch := handler.NewClientHandler(cfg, match, service.PassthroughAuth{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(ch.ServeWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	login(t, conn, "ann")
	send(t, conn, "matchRoom", nil, 2)
	recv(t, conn)

	// 同一条连接换名登录，旧玩家走完整登出流程，不能留在目录里
	login(t, conn, "bo")
	_, ok := players.Get("ann")
	assert.False(t, ok)
	assert.Nil(t, rooms.GetByID(1))
	assert.Equal(t, 1, match.PlayerCount())

	// 断线后宽限期到点，服务器上一个玩家都不剩
	conn.Close()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, match.PlayerCount())
}

func TestReloginSameNameIsIdempotent(t *testing.T) {
	srv, match := newTestServer(t, true)
	conn := dial(t, srv)
	login(t, conn, "ann")

	send(t, conn, "matchRoom", nil, 1)
	recv(t, conn)

	// 重复登录同名不会动现有状态，座位原样保留
	send(t, conn, "login", map[string]string{"name": "ann", "password": "pw"}, 2)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)

	var result struct {
		OK     bool `json:"ok"`
		RoomID int  `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rest[1], &result))
	assert.True(t, result.OK)
	assert.Equal(t, 1, result.RoomID)
	assert.Equal(t, 1, match.PlayerCount())
}

func TestErrorEventKeepsConnectionAlive(t *testing.T) {
	srv, _ := newTestServer(t, true)
	conn := dial(t, srv)
	login(t, conn, "ann")

	// error 事件只记录，连接继续可用
	send(t, conn, "error", map[string]string{"message": "boom"})
	send(t, conn, "playerNum", nil, 4)
	ev, rest := recv(t, conn)
	require.Equal(t, "ack", ev)
	assert.JSONEq(t, `{"num":1}`, string(rest[1]))
}
