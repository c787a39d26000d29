package ipfs

import (
	"flag"
	"os/exec"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casregistry"
)

var flagOpts Options

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "raw blocks in a local IPFS repo via the Kubo CLI",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon | casregistry.UsageServer,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagOpts.Bin, "ipfs-bin", "ipfs", "ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagOpts.RepoPath, "ipfs-path", "", "IPFS_PATH override (for --backend=ipfs)")
		},
		Open: func() (storage.BlobStore, storage.Closer, error) {
			return open(flagOpts)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.BlobStore, storage.Closer, error) {
			return open(Options{Bin: cfg["ipfs-bin"], RepoPath: cfg["ipfs-path"]})
		},
	})
}

func open(opts Options) (storage.BlobStore, storage.Closer, error) {
	s := New(opts)
	if _, err := exec.LookPath(s.bin); err != nil {
		return nil, nil, err
	}
	return s, storage.NopCloser, nil
}
