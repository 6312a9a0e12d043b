package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

var registry = struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores the logger that Get returns for name.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the logger registered for name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterComponents registers a component logger derived from the global
// logger for every name and every key of levels. A level in levels replaces
// the global level for that component; unknown level names are ignored.
// Call it after SetGlobalLogger and before building the components.
func RegisterComponents(levels map[string]string, names ...string) {
	for name := range levels {
		names = append(names, name)
	}
	base := GetGlobalLogger()
	for _, name := range names {
		l := base.WithComponent(name)
		if lvl, err := zerolog.ParseLevel(levels[name]); err == nil && levels[name] != "" {
			l = &Logger{logger: l.logger.Level(lvl), service: l.service}
		}
		Register(name, l)
	}
}
