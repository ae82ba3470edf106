// internal/di/container.go
package di

import (
	"sort"
	"sync"
)

// Container 按名称注册服务实例的依赖注入容器
// 服务在启动阶段一次性装配，运行期只读
type Container struct {
	mutex    sync.RWMutex
	services map[string]interface{}
}

var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer 创建空容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 获取进程级全局容器
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 注册服务实例，同名注册覆盖旧实例
func (c *Container) Register(name string, service interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.services[name] = service
}

// Get 按名称取服务实例，未注册时返回nil
func (c *Container) Get(name string) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.services[name]
}

// Has 检查服务是否已注册
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Clear 清空容器，仅用于测试
func (c *Container) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.services = make(map[string]interface{})
}

// GetNames 返回已注册服务名的有序列表
func (c *Container) GetNames() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
