package service

import (
	"errors"
	"strings"
)

// Authenticator 账号体系由外部系统承担，这里只定义大厅需要的钩子
type Authenticator interface {
	Login(name, password string) error
	Register(name, password string) error
	ResetPassword(name string) error
}

// PassthroughAuth 默认实现：名字非空即放行，注册和找回密码指引客户端
// 走账号服务
type PassthroughAuth struct{}

func (PassthroughAuth) Login(name, password string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("player name is empty")
	}
	return nil
}

func (PassthroughAuth) Register(name, password string) error {
	return errors.New("register is handled by the account service")
}

func (PassthroughAuth) ResetPassword(name string) error {
	return errors.New("password recovery is handled by the account service")
}
