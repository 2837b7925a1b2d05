//go:build tools

package tools

// Pins the mock generator used by the go:generate lines in pkg/broker.
import (
	_ "github.com/vektra/mockery/v2"
)
