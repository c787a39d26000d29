// Package ipfs stores model blobs as raw blocks in a local IPFS repository by
// running the Kubo "ipfs" binary. No daemon is required.
//
// Blocks are written as CIDv1 raw sha2-256, the same identifiers the other
// backends use, so a model keeps its CID when mirrored into IPFS.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
)

// Store is a storage.BlobStore backed by the Kubo CLI.
type Store struct {
	bin string
	env []string
}

type Options struct {
	// Bin is the ipfs binary. Defaults to "ipfs" on PATH.
	Bin string
	// RepoPath sets IPFS_PATH for every invocation when non-empty.
	RepoPath string
}

func New(opts Options) *Store {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	s := &Store{bin: bin}
	if opts.RepoPath != "" {
		s.env = append(os.Environ(), "IPFS_PATH="+opts.RepoPath)
	}
	return s
}

func (s *Store) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := s.run(ctx, data,
		"block", "put",
		"--quiet",
		"--format=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		"--cid-version=1",
		"/dev/stdin",
	)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(id) {
		log.Warn().Str("cid", id.String()).Str("ipfs_cid", got.String()).Msg("ipfs returned a different cid")
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := s.run(ctx, nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := cidutil.Verify(id, out); err != nil {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, storage.ErrInvalidCID
	}
	_, err := s.run(ctx, nil, "block", "stat", "--offline", id.String())
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// cmdError carries the stderr of a failed ipfs invocation.
type cmdError struct {
	stderr string
	err    error
}

func (e *cmdError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("ipfs: %v", e.err)
	}
	return "ipfs: " + e.stderr
}

func (e *cmdError) Unwrap() error { return e.err }

func (s *Store) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.bin, args...)
	if s.env != nil {
		cmd.Env = s.env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return nil, &cmdError{stderr: strings.TrimSpace(string(ee.Stderr)), err: err}
	}
	return nil, err
}

func isNotFound(err error) bool {
	var ce *cmdError
	if !errors.As(err, &ce) {
		return false
	}
	msg := strings.ToLower(ce.stderr)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no such")
}
