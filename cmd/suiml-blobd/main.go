package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"suiml.io/suiml/logging"
	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/casconfig"
	"suiml.io/suiml/storage/casregistry"
	"suiml.io/suiml/storage/grpccas"

	_ "suiml.io/suiml/storage/ipfs"
	_ "suiml.io/suiml/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run serves until ctx is done. ready, when non-nil, receives the bound
// address once the listener is open.
func run(ctx context.Context, args []string, out, errOut io.Writer, ready chan<- string) int {
	fs := flag.NewFlagSet("suiml-blobd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7070", "listen address")
	backend := fs.String("backend", "localfs", "blob store backend name")
	storageConfig := fs.String("storage-config", "", "casconfig JSON file (overrides --backend)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	logLevel := fs.String("log-level", "INFO", "DEBUG, INFO, WARN, ERROR or DISABLED")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}
	if err := logging.InitWriter(errOut, *logLevel, true); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	var (
		store   storage.BlobStore
		closeFn storage.Closer
		err     error
	)
	if *storageConfig != "" {
		var cc casconfig.Config
		if cc, err = casconfig.LoadFile(*storageConfig); err == nil {
			store, closeFn, err = cc.Open(casregistry.UsageDaemon, "")
		}
	} else {
		store, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterBlobStoreServer(s, &grpccas.Server{Store: store})

	go func() {
		<-ctx.Done()
		log.Info().Msg("suiml-blobd shutting down")
		s.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Str("backend", *backend).Msg("suiml-blobd listening")
	if ready != nil {
		ready <- lis.Addr().String()
	}
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
