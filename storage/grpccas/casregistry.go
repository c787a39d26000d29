package grpccas

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casregistry"
)

type settings struct {
	target      string
	dialTimeout time.Duration
	timeout     time.Duration
	maxMsgBytes int
}

var flags = settings{dialTimeout: 5 * time.Second}

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "remote suiml-blobd over gRPC",
		Usage:       casregistry.UsageCLI | casregistry.UsageServer,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flags.target, "grpc-target", "", "blob daemon host:port (for --backend=grpc)")
			fs.DurationVar(&flags.dialTimeout, "grpc-dial-timeout", 5*time.Second, "dial timeout (for --backend=grpc)")
			fs.DurationVar(&flags.timeout, "grpc-timeout", 0, "per-RPC timeout (for --backend=grpc)")
			fs.IntVar(&flags.maxMsgBytes, "grpc-max-msg-bytes", 0, "max message size in bytes; 0 uses grpc defaults")
		},
		Open: func() (storage.BlobStore, storage.Closer, error) {
			return open(flags)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.BlobStore, storage.Closer, error) {
			s, err := parseSettings(cfg)
			if err != nil {
				return nil, nil, err
			}
			return open(s)
		},
	})
}

func parseSettings(cfg map[string]string) (settings, error) {
	s := settings{target: cfg["grpc-target"], dialTimeout: 5 * time.Second}
	var err error
	if v := cfg["grpc-dial-timeout"]; v != "" {
		if s.dialTimeout, err = time.ParseDuration(v); err != nil {
			return s, fmt.Errorf("grpc-dial-timeout: %w", err)
		}
	}
	if v := cfg["grpc-timeout"]; v != "" {
		if s.timeout, err = time.ParseDuration(v); err != nil {
			return s, fmt.Errorf("grpc-timeout: %w", err)
		}
	}
	if v := cfg["grpc-max-msg-bytes"]; v != "" {
		if s.maxMsgBytes, err = strconv.Atoi(v); err != nil {
			return s, fmt.Errorf("grpc-max-msg-bytes: %w", err)
		}
	}
	return s, nil
}

func open(s settings) (storage.BlobStore, storage.Closer, error) {
	target := strings.TrimSpace(s.target)
	if target == "" {
		return nil, nil, fmt.Errorf("grpc: missing grpc-target")
	}
	c, err := Dial(target, DialOptions{Timeout: s.dialTimeout, MaxMsgBytes: s.maxMsgBytes})
	if err != nil {
		return nil, nil, err
	}
	c.Timeout = s.timeout
	return c, c.Close, nil
}
