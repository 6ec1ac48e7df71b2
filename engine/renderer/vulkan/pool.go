package vulkan

import "sync"

type lockGroup string

const (
	queueManagement       lockGroup = "queue_management"
	descriptorManagement  lockGroup = "descriptor_management"
	commandPoolManagement lockGroup = "command_pool_management"
)

// lockPool serializes calls that Vulkan requires to be externally
// synchronized: queue submission and presentation, and allocation from
// shared pools.
type lockPool struct {
	locks map[lockGroup]*sync.Mutex
	mu    sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{
		locks: make(map[lockGroup]*sync.Mutex),
	}
}

func (lp *lockPool) lock(group lockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, exists := lp.locks[group]
	if !exists {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()

	l.Lock()
	return l
}

func (lp *lockPool) SafeCall(group lockGroup, fn func() error) error {
	l := lp.lock(group)
	defer l.Unlock()
	return fn()
}
