package registrar

import (
	"fmt"
	"sync"
)

// Factory 根据配置创建客户端
type Factory func(cfg Config) (Client, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register 用于向注册表注册一种注册商实现
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[kind]; exists {
		// 防止重复注册
		panic(fmt.Sprintf("注册商类型 '%s' 已被注册", kind))
	}
	registry[kind] = f
}

// New 根据类型从注册表中创建客户端实例
func New(kind string, cfg Config) (Client, error) {
	mu.RLock()
	f, exists := registry[kind]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("未找到名为 '%s' 的注册商实现", kind)
	}
	return f(cfg)
}
