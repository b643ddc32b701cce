package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // pprof 路由注册
	"os"
	"os/signal"
	"syscall"
	"time"

	"lobby/internal/config"
	"lobby/internal/handler"
	"lobby/internal/model"
	"lobby/internal/service"
	"lobby/internal/util"
)

func main() {
	// 加载配置
	if err := config.LoadConfig("config.yaml"); err != nil {
		log.Fatalf("load config file failed: %v", err)
	}
	util.InitLogger(&config.AppConfig)

	// 初始化组件
	playerMgr := model.NewPlayerManager()
	roomMgr := model.NewRoomManager()

	var presence *service.PresenceService
	if config.AppConfig.Redis.Address != "" {
		presence = service.NewPresenceService(
			config.AppConfig.Redis.Address,
			config.AppConfig.Redis.Password,
			config.AppConfig.Redis.DB,
			config.AppConfig.Redis.PoolSize,
			fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.WSPort),
		)
	}

	gracePeriod := time.Duration(config.AppConfig.Match.GracePeriod) * time.Second
	matchSvc := service.NewMatchService(roomMgr, playerMgr, presence, gracePeriod)

	// 注册到 Consul（地址为空则跳过）
	var consulSvc *service.ConsulService
	if config.AppConfig.Consul.Address != "" {
		var err error
		consulSvc, err = service.NewConsulService(
			config.AppConfig.Consul.Address,
			config.AppConfig.Consul.ServiceName,
			config.AppConfig.Server.Host,
			config.AppConfig.Server.WSPort,
			config.AppConfig.Consul.TTL,
		)
		if err != nil {
			util.Logger.Fatalf("consul init failed: %v", err)
		}
		if err := consulSvc.Register(); err != nil {
			util.Logger.Fatalf("consul register failed: %v", err)
		}
		go consulSvc.StartHeartbeat()
	}

	// 启动 WebSocket 服务
	clientHandler := handler.NewClientHandler(&config.AppConfig, matchSvc, service.PassthroughAuth{}, presence)
	wsAddr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.WSPort)
	http.HandleFunc("/ws", clientHandler.ServeWS)
	util.Logger.Infof("Starting WebSocket server on %s", wsAddr)
	go func() {
		if err := http.ListenAndServe(wsAddr, nil); err != nil {
			util.Logger.Fatalf("Failed to start WebSocket server: %v", err)
		}
	}()

	// 启动 pprof HTTP 服务，用于性能监控
	pprofAddr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.PProfPort)
	go func() {
		log.Printf("pprof server starting on %s", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			log.Fatalf("pprof server failed: %v", err)
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	<-stopChan
	if consulSvc != nil {
		consulSvc.Stop()
	}
	util.Logger.Info("Shutting down gracefully...")
}
