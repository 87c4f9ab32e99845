package ess

import (
	"errors"
	"fmt"
	"time"
)

// Environments accepted by the streaming endpoint.
const (
	EnvPC    = "ps2"
	EnvPS4US = "ps2ps4us"
	EnvPS4EU = "ps2ps4eu"
)

// Default values
const (
	DefaultURL                  = "wss://push.planetside2.com/streaming"
	DefaultEnvironment          = EnvPC
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultReadTimeout          = 60 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultReconnectMaxAttempts = 3
	DefaultReconnectInterval    = 3 * time.Second
	DefaultReconnectCooldown    = 30 * time.Second
	DefaultFrameBuffer          = 1024
	DefaultSlowHandlerWarn      = 2 * time.Second
)

// ErrNoServiceID is returned when the client is created without a service ID.
// The streaming endpoint rejects unidentified connections, so no socket is
// ever opened in this case.
var ErrNoServiceID = errors.New("service ID is required")

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client is closed")

// ErrAlreadyConnected is returned by Connect on a client that was already
// started.
var ErrAlreadyConnected = errors.New("client is already connected")

// ErrAuthRejected wraps terminal authentication failures: the upstream
// refused the configured service ID and the client stopped retrying.
var ErrAuthRejected = errors.New("service ID rejected by upstream")

// Config configures a streaming Client.
type Config struct {
	// ServiceID is the Daybreak-issued credential, without the "s:" prefix.
	// Required.
	ServiceID string

	// Environment selects the game environment (ps2, ps2ps4us, ps2ps4eu).
	Environment string

	// URL overrides the streaming endpoint, mainly for tests.
	URL string

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration

	// ReconnectMaxAttempts immediate-ish reconnect attempts are made after a
	// connection loss; the client then cools down for ReconnectCooldown and
	// starts over, indefinitely.
	ReconnectMaxAttempts int
	ReconnectInterval    time.Duration
	ReconnectCooldown    time.Duration

	// FrameBuffer is the inbound frame queue length between the socket read
	// loop and the dispatch worker.
	FrameBuffer int

	// DedupSize enables duplicate-event suppression when positive.
	DedupSize int

	SlowHandlerWarn time.Duration
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReconnectMaxAttempts == 0 {
		cfg.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.ReconnectCooldown == 0 {
		cfg.ReconnectCooldown = DefaultReconnectCooldown
	}
	if cfg.FrameBuffer == 0 {
		cfg.FrameBuffer = DefaultFrameBuffer
	}
	if cfg.SlowHandlerWarn == 0 {
		cfg.SlowHandlerWarn = DefaultSlowHandlerWarn
	}
}

func validate(cfg *Config) error {
	if cfg.ServiceID == "" {
		return ErrNoServiceID
	}
	switch cfg.Environment {
	case EnvPC, EnvPS4US, EnvPS4EU:
	default:
		return fmt.Errorf("unknown environment %q", cfg.Environment)
	}
	if cfg.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("reconnectMaxAttempts must be non-negative")
	}
	if cfg.DedupSize < 0 {
		return fmt.Errorf("dedupSize must be non-negative")
	}
	if cfg.FrameBuffer < 1 {
		return fmt.Errorf("frameBuffer must be positive")
	}
	return nil
}
