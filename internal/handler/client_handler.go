package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"lobby/internal/config"
	"lobby/internal/model"
	"lobby/internal/service"
	"lobby/internal/util"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域，允许所有来源
	},
}

// 登录拦截白名单：未登录也放行的事件
var noLoginEvents = []string{"login", "register", "findBackPwd"}

func isNoLoginEvent(name string) bool {
	for _, ev := range noLoginEvents {
		if ev == name {
			return true
		}
	}
	return false
}

// session 一条客户端连接
//
// player 只在本连接的读协程里写，绑定后直到连接结束都视为已登录。
type session struct {
	id      string
	conn    *websocket.Conn
	player  *model.Player
	writeMu sync.Mutex // 对手通知和本连接应答会并发写
}

func (s *session) emit(name string, payload any) {
	frame, err := util.PackEvent(name, payload)
	if err != nil {
		util.Logger.Errorf("Failed to pack event %s for session %s: %v", name, s.id, err)
		return
	}
	s.write(frame)
}

func (s *session) ack(ackID int64, payload any) {
	frame, err := util.PackAck(ackID, payload)
	if err != nil {
		util.Logger.Errorf("Failed to pack ack %d for session %s: %v", ackID, s.id, err)
		return
	}
	s.write(frame)
}

// reply 带 ackId 的事件走应答通道，否则下发同名结果事件
func (s *session) reply(ev *util.Event, name string, payload any) {
	if ev.HasAck {
		s.ack(ev.AckID, payload)
		return
	}
	s.emit(name, payload)
}

func (s *session) write(frame []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		util.Logger.Errorf("Failed to write to session %s: %v", s.id, err)
	}
}

// sessionManager 按会话 id 索引所有活跃连接，支持并发安全
type sessionManager struct {
	sessions map[string]*session
	mutex    sync.RWMutex
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*session)}
}

func (sm *sessionManager) add(s *session) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.sessions[s.id] = s
}

func (sm *sessionManager) remove(id string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	delete(sm.sessions, id)
}

func (sm *sessionManager) get(id string) (*session, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	s, exists := sm.sessions[id]
	return s, exists
}

func (sm *sessionManager) len() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.sessions)
}

type ClientHandler struct {
	cfg      *config.Config
	match    *service.MatchService
	auth     service.Authenticator
	presence *service.PresenceService
	sessions *sessionManager
}

func NewClientHandler(cfg *config.Config, match *service.MatchService, auth service.Authenticator, presence *service.PresenceService) *ClientHandler {
	return &ClientHandler{
		cfg:      cfg,
		match:    match,
		auth:     auth,
		presence: presence,
		sessions: newSessionManager(),
	}
}

func (ch *ClientHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Logger.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	s := &session{
		id:   uuid.NewString(),
		conn: wsConn,
	}
	ch.sessions.add(s)
	util.Logger.Infof("New client connected, SessionID: %s, IP: %s, Total Sessions: %d",
		s.id, getClientIP(r), ch.sessions.len())

	ch.handleMessages(s)
}

// handleMessages 本连接的读循环，读出错即视为断线
func (ch *ClientHandler) handleMessages(s *session) {
	defer func() {
		s.conn.Close()
		ch.sessions.remove(s.id)
		if s.player != nil {
			// 只有掉的是玩家的当前会话才进入宽限期
			if ch.match.Disconnect(s.player, s.id) {
				util.Logger.Infof("Player %s lost connection, removal scheduled", s.player.Name)
			}
		}
		util.Logger.Infof("Client disconnected, SessionID: %s", s.id)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			util.Logger.Infof("Read from session %s ended: %v", s.id, err)
			return
		}

		ev, err := util.ParseEvent(data)
		if err != nil {
			util.Logger.Warnf("Bad event frame from session %s: %v", s.id, err)
			continue
		}

		// 登录拦截：未登录又不在白名单里的事件不往下走，
		// 下发 login 提示让客户端先登录（软拒绝，可重试）
		if !ch.permitted(s, ev.Name) {
			s.emit("login", nil)
			continue
		}

		ch.dispatch(s, ev)
	}
}

// permitted 登录拦截判定，只看事件名
func (ch *ClientHandler) permitted(s *session, name string) bool {
	if !ch.cfg.Server.LoginIntercept {
		return true
	}
	if s.player != nil {
		return true
	}
	return isNoLoginEvent(name)
}

func (ch *ClientHandler) dispatch(s *session, ev *util.Event) {
	switch ev.Name {
	case "login":
		ch.handleLogin(s, ev)
	case "register":
		ch.handleRegister(s, ev)
	case "findBackPwd":
		ch.handleFindBackPwd(s, ev)
	case "playerNum":
		// 原样遵循查询协议：带应答通道才回
		if ev.HasAck {
			s.ack(ev.AckID, map[string]int{"num": ch.match.PlayerCount()})
		}
	case "matchRoom":
		ch.handleMatchRoom(s, ev)
	case "leaveRoom":
		ch.handleLeaveRoom(s, ev)
	case "logout":
		ch.handleLogout(s, ev)
	case "disconnecting":
		// 客户端即将断开，善后都在读循环的退出路径里
	case "error":
		util.Logger.Warnf("Session %s reported error: %s", s.id, string(ev.Data))
	default:
		util.Logger.Warnf("Unknown event %s from session %s", ev.Name, s.id)
	}
}

type loginReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResult struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Name     string `json:"name,omitempty"`
	Rejoined bool   `json:"rejoined,omitempty"`
	RoomID   int    `json:"roomId,omitempty"`
}

func (ch *ClientHandler) handleLogin(s *session, ev *util.Event) {
	var req loginReq
	if err := unmarshalPayload(ev, &req); err != nil {
		s.reply(ev, "loginResult", loginResult{OK: false, Message: "bad login payload"})
		return
	}
	if err := ch.auth.Login(req.Name, req.Password); err != nil {
		util.Logger.Warnf("Login rejected for %q on session %s: %v", req.Name, s.id, err)
		s.reply(ev, "loginResult", loginResult{OK: false, Message: err.Error()})
		return
	}

	// 本连接已经登录过：同名是幂等操作，换名先把旧玩家走登出流程，
	// 否则旧玩家会留在目录里没人管
	if s.player != nil {
		if s.player.Name == req.Name {
			s.reply(ev, "loginResult", loginResult{OK: true, Name: s.player.Name, RoomID: s.player.RoomID})
			return
		}
		util.Logger.Infof("Session %s switching player %s -> %s, logging out old player", s.id, s.player.Name, req.Name)
		ch.notifyOpponent(s.player, "playerLeft", map[string]any{
			"name":   s.player.Name,
			"roomId": s.player.RoomID,
		})
		ch.match.RemovePlayer(s.player)
		s.player = nil
	}

	if ch.presence != nil {
		if info, err := ch.presence.Lookup(context.Background(), req.Name); err == nil && info != "" {
			util.Logger.Warnf("Player %s already online at %s, taking over", req.Name, info)
		}
	}

	player, rejoined, oldSession := ch.match.Login(req.Name, s.id)
	s.player = player

	// 顶号：旧连接还在就关掉，它的断线回调认不出当前会话，不会触发移除
	if oldSession != "" && oldSession != s.id {
		if old, ok := ch.sessions.get(oldSession); ok {
			util.Logger.Warnf("Player %s logged in again, closing old session %s", req.Name, oldSession)
			old.conn.Close()
		}
	}

	result := loginResult{OK: true, Name: player.Name, Rejoined: rejoined, RoomID: player.RoomID}
	s.reply(ev, "loginResult", result)
	util.Logger.Infof("Player %s logged in on session %s (rejoined=%v)", player.Name, s.id, rejoined)
}

type authResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func (ch *ClientHandler) handleRegister(s *session, ev *util.Event) {
	var req loginReq
	if err := unmarshalPayload(ev, &req); err != nil {
		s.reply(ev, "registerResult", authResult{OK: false, Message: "bad register payload"})
		return
	}
	if err := ch.auth.Register(req.Name, req.Password); err != nil {
		s.reply(ev, "registerResult", authResult{OK: false, Message: err.Error()})
		return
	}
	s.reply(ev, "registerResult", authResult{OK: true})
}

func (ch *ClientHandler) handleFindBackPwd(s *session, ev *util.Event) {
	var req loginReq
	if err := unmarshalPayload(ev, &req); err != nil {
		s.reply(ev, "findBackPwdResult", authResult{OK: false, Message: "bad payload"})
		return
	}
	if err := ch.auth.ResetPassword(req.Name); err != nil {
		s.reply(ev, "findBackPwdResult", authResult{OK: false, Message: err.Error()})
		return
	}
	s.reply(ev, "findBackPwdResult", authResult{OK: true})
}

type matchResult struct {
	RoomID   int    `json:"roomId"`
	Opponent string `json:"opponent,omitempty"`
}

func (ch *ClientHandler) handleMatchRoom(s *session, ev *util.Event) {
	player := s.player
	if player == nil {
		// 只有关掉登录拦截才会走到这里
		s.emit("login", nil)
		return
	}
	room := ch.match.Distribute(player)

	result := matchResult{RoomID: room.ID}
	if oppName, _, ok := ch.match.OpponentSession(player); ok {
		result.Opponent = oppName
	}
	s.reply(ev, "matchResult", result)
	util.Logger.Infof("Player %s matched into room %d", player.Name, room.ID)

	ch.notifyOpponent(player, "playerJoined", map[string]any{
		"name":   player.Name,
		"roomId": room.ID,
	})
}

func (ch *ClientHandler) handleLeaveRoom(s *session, ev *util.Event) {
	player := s.player
	if player == nil {
		s.emit("login", nil)
		return
	}
	roomID := player.RoomID
	ch.notifyOpponent(player, "playerLeft", map[string]any{
		"name":   player.Name,
		"roomId": roomID,
	})
	ch.match.LeaveRoom(player)
	s.reply(ev, "leaveResult", map[string]any{"ok": true, "roomId": roomID})
	util.Logger.Infof("Player %s left room %d", player.Name, roomID)
}

func (ch *ClientHandler) handleLogout(s *session, ev *util.Event) {
	player := s.player
	if player == nil {
		s.emit("login", nil)
		return
	}
	ch.notifyOpponent(player, "playerLeft", map[string]any{
		"name":   player.Name,
		"roomId": player.RoomID,
	})
	ch.match.RemovePlayer(player)
	s.player = nil
	s.reply(ev, "logoutResult", map[string]any{"ok": true})
	util.Logger.Infof("Player %s logged out", player.Name)
}

// notifyOpponent 给同房间对手的活跃连接下发事件，对手不在线就算了
func (ch *ClientHandler) notifyOpponent(p *model.Player, name string, payload any) {
	_, sessionID, ok := ch.match.OpponentSession(p)
	if !ok || sessionID == "" {
		return
	}
	if os, exists := ch.sessions.get(sessionID); exists {
		os.emit(name, payload)
	}
}

func unmarshalPayload(ev *util.Event, v any) error {
	if len(ev.Data) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(ev.Data, v)
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.Split(ip, ",")[0]
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
