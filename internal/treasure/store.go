// Package treasure is the fixed-width record store: one treasures.dat file
// per hunt directory, appended to, scanned sequentially and rewritten on
// delete. It has no locking, concurrent writers are not supported.
package treasure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const StoreFile = "treasures.dat"

var (
	ErrHuntNotFound   = errors.New("hunt not found")
	ErrRecordNotFound = errors.New("treasure not found")
	ErrInvalidHunt    = errors.New("invalid hunt name")
)

// statLimit bounds the goroutines stat-ing hunt stores in Hunts.
const statLimit = 4

// Hunt describes a hunt directory holding a store file.
type Hunt struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Records is the number of complete records, a partial tail is not counted.
func (h Hunt) Records() int {
	return int(h.Size / RecordSize)
}

// Partial reports the size of a trailing incomplete record.
func (h Hunt) Partial() int64 {
	return h.Size % RecordSize
}

// Store gives access to all hunts under one root directory.
type Store struct {
	root string
}

func Open(root string) Store {
	return Store{root: root}
}

func (s Store) Root() string {
	return s.root
}

func (s Store) Dir(hunt string) string {
	return filepath.Join(s.root, hunt)
}

func (s Store) Path(hunt string) string {
	return filepath.Join(s.root, hunt, StoreFile)
}

// ValidHunt rejects names which would escape the root directory.
func ValidHunt(hunt string) error {
	if hunt == "" || hunt == "." || hunt == ".." || strings.ContainsAny(hunt, `/\`) || strings.ContainsRune(hunt, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidHunt, hunt)
	}
	return nil
}

// Hunts lists every subdirectory of the root containing a store file,
// sorted by name.
func (s Store) Hunts(ctx context.Context) ([]Hunt, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading hunts directory: %w", err)
	}

	found := make([]*Hunt, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statLimit)
	for i, e := range entries {
		if !e.IsDir() {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h, err := s.Stat(e.Name())
			if err != nil {
				// directories without a store are not hunts
				return nil
			}
			found[i] = &h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hunts := make([]Hunt, 0, len(found))
	for _, h := range found {
		if h != nil {
			hunts = append(hunts, *h)
		}
	}
	return hunts, nil
}

// Stat returns size and modification time of the hunt's store.
func (s Store) Stat(hunt string) (Hunt, error) {
	if err := ValidHunt(hunt); err != nil {
		return Hunt{}, err
	}
	info, err := os.Stat(s.Path(hunt))
	if errors.Is(err, fs.ErrNotExist) {
		return Hunt{}, fmt.Errorf("%w: %s", ErrHuntNotFound, hunt)
	}
	if err != nil {
		return Hunt{}, err
	}
	if !info.Mode().IsRegular() {
		return Hunt{}, fmt.Errorf("%w: %s is not a regular file", ErrHuntNotFound, s.Path(hunt))
	}
	return Hunt{
		Name:    hunt,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Records iterates the hunt's store sequentially. A trailing partial record
// is reported once with ErrPartialRecord and ends the iteration.
func (s Store) Records(hunt string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if err := ValidHunt(hunt); err != nil {
			yield(Record{}, err)
			return
		}
		f, err := os.Open(s.Path(hunt))
		if errors.Is(err, fs.ErrNotExist) {
			yield(Record{}, fmt.Errorf("%w: %s", ErrHuntNotFound, hunt))
			return
		}
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer func() {
			_ = f.Close()
		}()

		for rec, err := range Scan(f) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Scan decodes fixed-width records from r until EOF.
func Scan(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		buf := make([]byte, RecordSize)
		for {
			n, err := io.ReadFull(r, buf)
			switch {
			case err == nil:
				var rec Record
				if uerr := rec.UnmarshalBinary(buf); uerr != nil {
					yield(Record{}, uerr)
					return
				}
				if !yield(rec, nil) {
					return
				}
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, io.ErrUnexpectedEOF):
				yield(Record{}, fmt.Errorf("%w: %d trailing bytes", ErrPartialRecord, n))
				return
			default:
				yield(Record{}, err)
				return
			}
		}
	}
}

// Find returns the first record with the given id.
func (s Store) Find(hunt, id string) (Record, error) {
	for rec, err := range s.Records(hunt) {
		if errors.Is(err, ErrPartialRecord) {
			break
		}
		if err != nil {
			return Record{}, err
		}
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s in hunt %s", ErrRecordNotFound, id, hunt)
}

// Append adds rec at the end of the hunt's store, creating the hunt
// directory when needed.
func (s Store) Append(hunt string, rec Record) error {
	if err := ValidHunt(hunt); err != nil {
		return err
	}
	b, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir(hunt), 0755); err != nil {
		return fmt.Errorf("creating hunt directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(hunt), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening treasure file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing treasure: %w", err)
	}
	return f.Close()
}

// Remove rewrites the store without the first record matching id. Records
// are copied byte for byte, a partial trailing record is dropped.
func (s Store) Remove(hunt, id string) error {
	if err := ValidHunt(hunt); err != nil {
		return err
	}
	src, err := os.Open(s.Path(hunt))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrHuntNotFound, hunt)
	}
	if err != nil {
		return fmt.Errorf("opening treasure file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	tmp := s.Path(hunt) + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	fail := func(err error) error {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return err
	}

	found := false
	buf := make([]byte, RecordSize)
	for {
		_, err := io.ReadFull(src, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("reading treasure file: %w", err))
		}
		if !found && cString(buf[:offUser]) == id {
			found = true
			continue
		}
		if _, err := dst.Write(buf); err != nil {
			return fail(fmt.Errorf("writing temporary file: %w", err))
		}
	}
	if !found {
		return fail(fmt.Errorf("%w: %s in hunt %s", ErrRecordNotFound, id, hunt))
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.Path(hunt)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("updating treasure file: %w", err)
	}
	return nil
}

// RemoveHunt deletes the whole hunt directory.
func (s Store) RemoveHunt(hunt string) error {
	if err := ValidHunt(hunt); err != nil {
		return err
	}
	if _, err := os.Stat(s.Dir(hunt)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrHuntNotFound, hunt)
	}
	return os.RemoveAll(s.Dir(hunt))
}
