package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "messages.orbit.bootstrap_peers[0]"
	Message string // e.g., "invalid multiaddr"
	Hint    string // e.g., "expected /ip{4,6}/.../tcp/<port>/p2p/<peerID>"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the whole config and returns every problem found, so the
// caller can print them at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateRPC()...)
	errs = append(errs, c.validateContracts()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateMessages()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateRPC() []error {
	var errs []error

	u, err := url.Parse(c.RPC.URL)
	if err != nil || u.Host == "" {
		errs = append(errs, ValidationError{
			Path:    "rpc.url",
			Message: fmt.Sprintf("invalid URL %q", c.RPC.URL),
			Hint:    "expected http://host:port or ws://host:port",
		})
		return errs
	}

	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		errs = append(errs, ValidationError{
			Path:    "rpc.url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
			Hint:    "use http, https, ws or wss",
		})
	}

	return errs
}

func (c *Config) validateContracts() []error {
	var errs []error
	cc := c.Contracts

	if cc.DefaultGas == 0 {
		errs = append(errs, ValidationError{
			Path:    "contracts.default_gas",
			Message: "must be > 0",
		})
	}
	if cc.Confirmation.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Path:    "contracts.confirmation.poll_interval",
			Message: "must be > 0",
			Hint:    "e.g. 1s",
		})
	}
	if cc.Confirmation.MaxAttempts < 0 {
		errs = append(errs, ValidationError{
			Path:    "contracts.confirmation.max_attempts",
			Message: "must be >= 0",
			Hint:    "0 polls until a receipt appears",
		})
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	sc := c.Storage

	switch strings.ToLower(sc.Provider) {
	case "ipfs", "swarm":
	default:
		errs = append(errs, ValidationError{
			Path:    "storage.provider",
			Message: fmt.Sprintf("unknown provider %q", sc.Provider),
			Hint:    "use ipfs",
		})
	}
	if sc.Server == "" {
		errs = append(errs, ValidationError{
			Path:    "storage.server",
			Message: "must not be empty",
		})
	}
	if sc.Port < 1 || sc.Port > 65535 {
		errs = append(errs, ValidationError{
			Path:    "storage.port",
			Message: fmt.Sprintf("port %d out of range", sc.Port),
			Hint:    "must be 1-65535",
		})
	}
	if sc.Protocol != "" && !strings.HasSuffix(sc.Protocol, "://") {
		errs = append(errs, ValidationError{
			Path:    "storage.protocol",
			Message: fmt.Sprintf("invalid protocol prefix %q", sc.Protocol),
			Hint:    `expected a scheme followed by "://", e.g. "http://"`,
		})
	}

	return errs
}

func (c *Config) validateMessages() []error {
	var errs []error
	mc := c.Messages

	switch mc.Provider {
	case "whisper", "orbit":
	default:
		errs = append(errs, ValidationError{
			Path:    "messages.provider",
			Message: fmt.Sprintf("unknown provider %q", mc.Provider),
			Hint:    "use whisper or orbit",
		})
	}
	if mc.Port < 1 || mc.Port > 65535 {
		errs = append(errs, ValidationError{
			Path:    "messages.port",
			Message: fmt.Sprintf("port %d out of range", mc.Port),
			Hint:    "must be 1-65535",
		})
	}
	if mc.Whisper.FilterPollInterval <= 0 {
		errs = append(errs, ValidationError{
			Path:    "messages.whisper.filter_poll_interval",
			Message: "must be > 0",
		})
	}

	if mc.Orbit.DiscoveryInterval < 0 {
		errs = append(errs, ValidationError{
			Path:    "messages.orbit.discovery_interval",
			Message: "must be >= 0",
		})
	}

	for i, addr := range mc.Orbit.ListenAddresses {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("messages.orbit.listen_addresses[%d]", i),
				Message: fmt.Sprintf("invalid multiaddr: %v", err),
				Hint:    "expected /ip{4,6}/.../tcp/<port>",
			})
		}
	}
	for i, addr := range mc.Orbit.BootstrapPeers {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("messages.orbit.bootstrap_peers[%d]", i),
				Message: fmt.Sprintf("invalid multiaddr: %v", err),
				Hint:    "expected /ip{4,6}/.../tcp/<port>/p2p/<peerID>",
			})
			continue
		}
		if _, err := ma.ValueForProtocol(multiaddr.P_P2P); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("messages.orbit.bootstrap_peers[%d]", i),
				Message: "missing /p2p/<peerID> component",
				Hint:    "expected /ip{4,6}/.../tcp/<port>/p2p/<peerID>",
			})
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	lc := c.Logging

	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", lc.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}

	switch lc.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", lc.Format),
			Hint:    "allowed values: json, console",
		})
	}

	return errs
}
