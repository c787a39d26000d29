package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"suiml.io/suiml/backend"
	"suiml.io/suiml/config"
	"suiml.io/suiml/errs"
	"suiml.io/suiml/inference"
	"suiml.io/suiml/keys"
	"suiml.io/suiml/logging"
	"suiml.io/suiml/metrics"
	"suiml.io/suiml/predlog"
	"suiml.io/suiml/session"
	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casconfig"
	"suiml.io/suiml/storage/casregistry"
	"suiml.io/suiml/sui"

	_ "suiml.io/suiml/storage/grpccas"
	_ "suiml.io/suiml/storage/ipfs"
	_ "suiml.io/suiml/storage/localfs"
)

// env carries the loaded configuration and the resources a command opened.
type env struct {
	cfg     config.Config
	out     io.Writer
	errOut  io.Writer
	closers []func() error
}

func newEnv(configPath string, out, errOut io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Console); err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, out: out, errOut: errOut}
	if err := metrics.Init(cfg.Metrics.StatsdAddr, []string{metrics.Tag(metrics.TagService, "suiml")}, cfg.Metrics.SampleRate); err != nil {
		return nil, err
	}
	e.onClose(metrics.Close)
	return e, nil
}

func (e *env) onClose(fn func() error) { e.closers = append(e.closers, fn) }

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	e.closers = nil
}

// fail reports err for the step named what and returns the failure status.
func (e *env) fail(what string, err error) int {
	if code := errs.CodeOf(err); code != "" {
		fmt.Fprintf(e.errOut, "%s: %v [%s]\n", what, err, code)
		return 1
	}
	fmt.Fprintf(e.errOut, "%s: %v\n", what, err)
	return 1
}

func (e *env) printJSON(v any) int {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return e.fail("write output", err)
	}
	return 0
}

func (e *env) keyStore() (*keys.KeyStore, error) {
	return keys.Open(e.cfg.Key.Dir)
}

// signer returns the configured signing key, or nil when none is set.
func (e *env) signer() (sui.Signer, error) {
	ks, err := e.keyStore()
	if err != nil {
		return nil, err
	}
	kp, err := ks.ResolveSigner(e.cfg.Key.PrivateKey, e.cfg.Key.Name, e.cfg.Key.Role)
	if err != nil || kp == nil {
		return nil, err
	}
	return kp, nil
}

func (e *env) rpc() *sui.Client {
	return sui.NewClient(e.cfg.Network.RPCURL,
		sui.WithTimeout(e.cfg.Network.RequestTimeout),
		sui.WithReadRetries(e.cfg.Network.ReadRetries),
	)
}

func (e *env) inferenceClient() (*inference.Client, error) {
	pkg, err := e.cfg.PackageID()
	if err != nil {
		return nil, err
	}
	opts := []inference.Option{
		inference.WithModule(e.cfg.Contract.Module),
		inference.WithGasBudget(e.cfg.Gas.Budget),
	}
	if e.cfg.Gas.Price > 0 {
		opts = append(opts, inference.WithGasPrice(e.cfg.Gas.Price))
	}
	signer, err := e.signer()
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if signer != nil {
		opts = append(opts, inference.WithSigner(signer))
	}
	pub := predlog.New(e.cfg.Kafka.Brokers, e.cfg.Kafka.Topic)
	e.onClose(pub.Close)
	opts = append(opts, inference.WithPublisher(pub))
	return inference.NewClient(e.rpc(), pkg, opts...)
}

// openStore opens the configured blob store. With fallback set and nothing
// configured it uses ~/.suiml/blobs; otherwise it returns nil.
func (e *env) openStore(usage casregistry.Usage, fallback bool) (storage.BlobStore, error) {
	var (
		s       storage.BlobStore
		closeFn storage.Closer
		err     error
	)
	switch {
	case e.cfg.Storage.Config != "":
		var cc casconfig.Config
		if cc, err = casconfig.LoadFile(e.cfg.Storage.Config); err != nil {
			return nil, err
		}
		s, closeFn, err = cc.Open(usage, "")
	case e.cfg.Storage.LocalFSDir != "":
		s, closeFn, err = casregistry.OpenWithConfig("localfs", usage, map[string]string{"localfs-dir": e.cfg.Storage.LocalFSDir})
	case fallback:
		home, herr := os.UserHomeDir()
		if herr != nil {
			return nil, herr
		}
		dir := filepath.Join(home, ".suiml", "blobs")
		s, closeFn, err = casregistry.OpenWithConfig("localfs", usage, map[string]string{"localfs-dir": dir})
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		e.onClose(closeFn)
	}
	return s, nil
}

func (e *env) session() (*session.Store, error) {
	return session.Open(e.cfg.Session.Path)
}

func (e *env) backend() *backend.Client {
	c := backend.NewClient(e.cfg.Backend.BaseURL)
	c.Timeout = e.cfg.Backend.Timeout
	c.ProverTimeout = e.cfg.Backend.ProverTimeout
	return c
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseUints(s string) ([]uint64, error) {
	parts := splitList(s)
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseSigns(s string) ([]uint8, error) {
	parts := splitList(s)
	out := make([]uint8, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

func parseFloats(items []string) ([]float64, error) {
	var out []float64
	for _, item := range items {
		for _, p := range splitList(item) {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}
