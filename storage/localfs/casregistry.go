package localfs

import (
	"flag"
	"fmt"

	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casregistry"
)

var flagDir string

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "model blobs in a local directory",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon | casregistry.UsageServer,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "blob directory (for --backend=localfs)")
		},
		Open: func() (storage.BlobStore, storage.Closer, error) {
			return open(flagDir)
		},
		OpenWithConfig: func(cfg map[string]string) (storage.BlobStore, storage.Closer, error) {
			return open(cfg["localfs-dir"])
		},
	})
}

func open(dir string) (storage.BlobStore, storage.Closer, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("localfs: missing localfs-dir")
	}
	s, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, storage.NopCloser, nil
}
