package gormstore

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorFactory builds a gorm.Dialector from a DSN.
type DialectorFactory func(dsn string) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given driver name.
// Driver sub-packages register themselves from init so that importing a
// driver is all it takes to make it available.
func RegisterDialector(driver string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	dialectorRegistry[driver] = factory
}

// dialectorFor retrieves the DialectorFactory for the given driver name.
func dialectorFor(driver string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[driver]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database driver: %s", driver)
	}
	return factory, nil
}
