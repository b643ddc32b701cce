package service

import (
	"fmt"
	"time"

	"lobby/internal/util"

	"github.com/hashicorp/consul/api"
)

// ConsulService 把大厅注册到 Consul，用 TTL 心跳维持健康状态，
// 关服时主动注销
type ConsulService struct {
	client    *api.Client
	serviceID string
	checkID   string
	name      string
	host      string
	port      int
	ttl       time.Duration
	stop      chan struct{}
}

func NewConsulService(address, serviceName, host string, port, ttlSeconds int) (*ConsulService, error) {
	config := api.DefaultConfig()
	config.Address = address
	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}
	serviceID := fmt.Sprintf("%s-%s-%d", serviceName, host, port)
	return &ConsulService{
		client:    client,
		serviceID: serviceID,
		checkID:   "service:" + serviceID,
		name:      serviceName,
		host:      host,
		port:      port,
		ttl:       time.Duration(ttlSeconds) * time.Second,
		stop:      make(chan struct{}),
	}, nil
}

// Register 注册服务并附带 TTL 健康检查
func (cs *ConsulService) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      cs.serviceID,
		Name:    cs.name,
		Address: cs.host,
		Port:    cs.port,
		Tags:    []string{"lobby"},
		Check: &api.AgentServiceCheck{
			CheckID:                        cs.checkID,
			TTL:                            cs.ttl.String(),
			DeregisterCriticalServiceAfter: (3 * cs.ttl).String(),
		},
	}
	if err := cs.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("register service %s failed: %v", cs.serviceID, err)
	}
	util.Logger.Infof("Registered service %s with Consul", cs.serviceID)
	return nil
}

// StartHeartbeat 周期性刷新 TTL，直到 Stop 被调用
func (cs *ConsulService) StartHeartbeat() {
	// 留出余量，TTL 过半就续
	ticker := time.NewTicker(cs.ttl / 2)
	defer ticker.Stop()

	if err := cs.client.Agent().UpdateTTL(cs.checkID, "online", api.HealthPassing); err != nil {
		util.Logger.Errorf("Failed to update TTL for %s: %v", cs.serviceID, err)
	}
	for {
		select {
		case <-ticker.C:
			if err := cs.client.Agent().UpdateTTL(cs.checkID, "online", api.HealthPassing); err != nil {
				util.Logger.Errorf("Failed to update TTL for %s: %v", cs.serviceID, err)
			}
		case <-cs.stop:
			return
		}
	}
}

// Stop 停止心跳并注销服务
func (cs *ConsulService) Stop() {
	close(cs.stop)
	if err := cs.client.Agent().ServiceDeregister(cs.serviceID); err != nil {
		util.Logger.Errorf("Failed to deregister service %s: %v", cs.serviceID, err)
		return
	}
	util.Logger.Infof("Deregistered service %s from Consul", cs.serviceID)
}
