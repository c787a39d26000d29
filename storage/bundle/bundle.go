// Package bundle moves model blobs between stores as a deterministic TAR
// archive: one "models/<cid>" entry per blob plus an optional index.json
// naming the models.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

const (
	blobPrefix = "models/"
	indexName  = "index.json"
)

var epoch = time.Unix(0, 0).UTC()

// Index lists the contents of a bundle. It is informational; import trusts
// only the blob entries and their CIDs.
type Index struct {
	Version int          `json:"version"`
	Models  []IndexEntry `json:"models"`
}

type IndexEntry struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
	Name string `json:"name,omitempty"`
}

type ExportOptions struct {
	// Names optionally labels blobs in index.json, keyed by CID string.
	Names map[string]string
	// IncludeIndex writes index.json as the last entry.
	IncludeIndex bool
}

// Export writes the blobs for ids to w. Entry order is sorted by CID and
// headers are normalized, so the same set of blobs always yields the same bytes.
func Export(ctx context.Context, w io.Writer, s storage.BlobStore, ids []cid.Cid, opts ExportOptions) (err error) {
	if s == nil {
		return errors.New("bundle: nil store")
	}
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	idx := Index{Version: FormatVersion}
	for _, id := range storage.SortedCIDs(uniq) {
		b, err := s.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", id, err)
		}
		if err := cidutil.Verify(id, b); err != nil {
			return storage.ErrCIDMismatch
		}
		if err := writeEntry(tw, blobPrefix+id.String(), b); err != nil {
			return err
		}
		idx.Models = append(idx.Models, IndexEntry{CID: id.String(), Size: len(b), Name: opts.Names[id.String()]})
	}

	if opts.IncludeIndex {
		b, err := json.Marshal(idx)
		if err != nil {
			return err
		}
		if err := writeEntry(tw, indexName, append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

type ImportOptions struct {
	// IgnoreUnknown skips entries that are neither blobs nor the index
	// instead of failing.
	IgnoreUnknown bool
}

// Import verifies every blob entry of the bundle in r against its name and
// stores it in s. It returns the imported CIDs in bundle order.
func Import(ctx context.Context, r io.Reader, s storage.BlobStore, opts ImportOptions) ([]cid.Cid, error) {
	if s == nil {
		return nil, errors.New("bundle: nil store")
	}
	tr := tar.NewReader(r)
	seen := map[string]bool{}
	var out []cid.Cid

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name, ok := cleanPath(h.Name)
		if !ok {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry type %v for %s", h.Typeflag, name)
		}
		if name == indexName {
			continue
		}
		if !strings.HasPrefix(name, blobPrefix) {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry %s", name)
		}

		id, err := cidutil.Parse(strings.TrimPrefix(name, blobPrefix))
		if err != nil {
			return out, storage.ErrInvalidCID
		}
		if seen[id.String()] {
			return out, fmt.Errorf("bundle: duplicate entry %s", id)
		}
		seen[id.String()] = true

		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if err := cidutil.Verify(id, payload); err != nil {
			return out, storage.ErrCIDMismatch
		}
		got, err := s.Put(ctx, payload)
		if err != nil {
			return out, err
		}
		if !got.Equals(id) {
			return out, storage.ErrCIDMismatch
		}
		out = append(out, id)
	}
}

// ReadIndex returns the index.json of a bundle, or nil if it has none.
func ReadIndex(r io.Reader) (*Index, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if name, ok := cleanPath(h.Name); !ok || name != indexName {
			continue
		}
		var idx Index
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return nil, fmt.Errorf("bundle: index: %w", err)
		}
		sort.Slice(idx.Models, func(i, j int) bool { return idx.Models[i].CID < idx.Models[j].CID })
		return &idx, nil
	}
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanPath normalizes an entry name and rejects absolute or escaping paths.
func cleanPath(name string) (string, bool) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimPrefix(name, "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	clean := path.Clean(name)
	if clean != name || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", false
	}
	return clean, true
}
