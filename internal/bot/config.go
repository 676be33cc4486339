package bot

import (
	"time"

	"golang.org/x/time/rate"
)

// Config represents the configuration for the bot
type Config struct {
	AdminUserIDs []int64
	// Inbound messages per second allowed for one user
	RateLimit rate.Limit
	Burst     int
	// Day boundaries for statistics
	Location *time.Location
	// Largest word list accepted in one /add message
	MaxLinesPerAdd int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{
		RateLimit:      2,
		Burst:          5,
		Location:       time.UTC,
		MaxLinesPerAdd: 200,
	}
}
