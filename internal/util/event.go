package util

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 事件帧格式: JSON 数组，第一个元素是事件名
//
//	["login", {"name":"ann","password":"x"}]
//	["playerNum", null, 7]          第三个元素是客户端选的 ackId
//
// 服务器的应答帧:
//
//	["login", null]                 服务器主动下发的事件
//	["ack", 7, {"num":3}]           对带 ackId 的事件的应答

// Event 一条入站事件
type Event struct {
	Name   string
	Data   json.RawMessage // 第二个元素原样保留，由处理方自行反序列化
	AckID  int64
	HasAck bool
}

// ParseEvent 解析入站事件帧
func ParseEvent(raw []byte) (*Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("event frame is not a JSON array: %v", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("empty event frame")
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return nil, fmt.Errorf("event name is not a string: %v", err)
	}
	if name == "" {
		return nil, errors.New("empty event name")
	}

	ev := &Event{Name: name}
	if len(parts) > 1 {
		ev.Data = parts[1]
	}
	if len(parts) > 2 {
		var ackID int64
		if err := json.Unmarshal(parts[2], &ackID); err != nil {
			return nil, fmt.Errorf("ack id is not an integer: %v", err)
		}
		ev.AckID = ackID
		ev.HasAck = true
	}
	return ev, nil
}

// PackEvent 打包一条服务器下发的事件帧
func PackEvent(name string, payload any) ([]byte, error) {
	return json.Marshal([]any{name, payload})
}

// PackAck 打包一条应答帧
func PackAck(ackID int64, payload any) ([]byte, error) {
	return json.Marshal([]any{"ack", ackID, payload})
}
