package app

import (
	"sync"

	"github.com/Adda-Baaj/griha/internal/logger"
)

// ConsoleNavigator stands in for the browser location: it reports the page
// the CLI claims to be on and records where the pipeline asked to go.
type ConsoleNavigator struct {
	mu      sync.Mutex
	current string
	targets []string
	log     logger.Logger
}

// NewConsoleNavigator starts on page current.
func NewConsoleNavigator(current string, log logger.Logger) *ConsoleNavigator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &ConsoleNavigator{current: current, log: log}
}

func (n *ConsoleNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Navigate records target and moves the current page there.
func (n *ConsoleNavigator) Navigate(target string) {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.current = target
	n.mu.Unlock()
	n.log.InfoObj("navigation requested", "navigate", map[string]any{"target": target})
}

// Targets returns every navigation target in order.
func (n *ConsoleNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}
