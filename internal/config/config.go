package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host           string `yaml:"host"`
		WSPort         int    `yaml:"ws_port"`
		PProfPort      int    `yaml:"pprof_port"`
		LoginIntercept bool   `yaml:"login_intercept"` // 登录拦截开关，默认开，调试时可关
	} `yaml:"server"`
	Match struct {
		GracePeriod int `yaml:"grace_period"` // 断线宽限期，单位秒
	} `yaml:"match"`
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Consul struct {
		Address     string `yaml:"address"`
		ServiceName string `yaml:"service_name"`
		TTL         int    `yaml:"ttl"` // 健康检查 TTL，单位秒
	} `yaml:"consul"`
	Logger struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logger"`
}

var AppConfig Config

func LoadConfig(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	// 先填默认值再解析，文件里没写的键保持默认
	AppConfig.Server.LoginIntercept = true
	err = yaml.Unmarshal(data, &AppConfig)
	if err != nil {
		return err
	}
	if AppConfig.Match.GracePeriod <= 0 {
		AppConfig.Match.GracePeriod = 60
	}
	if AppConfig.Consul.TTL <= 0 {
		AppConfig.Consul.TTL = 15
	}
	log.Printf("Configuration loaded: %+v\n", AppConfig)
	return nil
}
