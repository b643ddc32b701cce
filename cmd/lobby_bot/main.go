package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const serverAddr = "ws://127.0.0.1:5600/ws"

// 简易大厅机器人：连接服务器，登录，请求匹配，然后把收到的事件全部打印出来

var ackID int64

// sendEvent 发送事件帧 [name, payload]
func sendEvent(conn *websocket.Conn, name string, payload any) error {
	frame, err := json.Marshal([]any{name, payload})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// sendWithAck 发送带 ackId 的事件帧 [name, payload, ackId]
func sendWithAck(conn *websocket.Conn, name string, payload any) (int64, error) {
	ackID++
	frame, err := json.Marshal([]any{name, payload, ackID})
	if err != nil {
		return 0, err
	}
	return ackID, conn.WriteMessage(websocket.TextMessage, frame)
}

// readFrame 读一帧并拆出事件名和剩余元素
func readFrame(conn *websocket.Conn) (string, []json.RawMessage, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("解析事件帧失败: %v", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("收到空事件帧")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("事件名不是字符串: %v", err)
	}
	return name, parts[1:], nil
}

func main() {
	name := flag.String("name", "bot01", "登录用的玩家名")
	flag.Parse()

	log.Println("=== 大厅机器人启动 ===")

	conn, _, err := websocket.DefaultDialer.Dial(serverAddr, nil)
	if err != nil {
		log.Fatalf("连接服务器失败: %v", err)
	}
	defer conn.Close()
	log.Println("成功连接到服务器")

	// 登录
	id, err := sendWithAck(conn, "login", map[string]string{
		"name":     *name,
		"password": "123456",
	})
	if err != nil {
		log.Fatalf("发送登录请求失败: %v", err)
	}
	log.Printf("已发送登录请求 (玩家名: %s, ackId: %d)", *name, id)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	evName, rest, err := readFrame(conn)
	if err != nil {
		log.Fatalf("读取登录响应失败: %v", err)
	}
	log.Printf("登录响应: %s %s", evName, flatten(rest))

	// 查询在线人数
	if _, err := sendWithAck(conn, "playerNum", nil); err != nil {
		log.Fatalf("发送人数查询失败: %v", err)
	}
	evName, rest, err = readFrame(conn)
	if err != nil {
		log.Fatalf("读取人数响应失败: %v", err)
	}
	log.Printf("在线人数响应: %s %s", evName, flatten(rest))

	// 请求匹配
	if _, err := sendWithAck(conn, "matchRoom", nil); err != nil {
		log.Fatalf("发送匹配请求失败: %v", err)
	}
	evName, rest, err = readFrame(conn)
	if err != nil {
		log.Fatalf("读取匹配结果失败: %v", err)
	}
	log.Printf("匹配结果: %s %s", evName, flatten(rest))

	// 之后就挂着，打印服务器推送的事件（对手进房、对手离开等）
	log.Println("进入监听模式...")
	conn.SetReadDeadline(time.Time{})
	for {
		evName, rest, err = readFrame(conn)
		if err != nil {
			log.Fatalf("连接中断: %v", err)
		}
		log.Printf("收到事件: %s %s", evName, flatten(rest))
	}
}

func flatten(parts []json.RawMessage) string {
	out := ""
	for _, p := range parts {
		out += " " + string(p)
	}
	return out
}
