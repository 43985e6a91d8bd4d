// Package archive implements the Archive Opener (component C5):
// enumerating embedded video entries from a TAR stream and probing
// them in parallel into Video Handles that decode from byte ranges.
//
// archive/tar traversal is plain standard library — no example repo in
// the corpus wraps TAR reading in a third-party library, and the
// format is simple enough that one would add nothing. Parallel probing
// uses golang.org/x/sync/errgroup, matching the bounded fan-out the
// teacher's own encode pipeline performs with channels and a
// semaphore, generalized here to the richer cancel-on-first-error
// semantics errgroup provides for free.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/tensor"
	"github.com/vidreg/vidreg/internal/video"
)

// Entry describes one candidate video blob found in the TAR stream.
type Entry struct {
	Name   string
	Offset int64
	Length int64
}

// EntryFilter decides whether to keep an entry. A non-nil error aborts
// the whole archive open and is returned verbatim to the caller,
// unwrapped — the filter is a user callback and its errors must not be
// consumed or rewrapped (spec §9: "Archive filter exceptions").
type EntryFilter func(Entry) (bool, error)

// mmapReaderAt exposes a memory-mapped archive file as a
// decoder.ByteRangeReaderAt, so embedded entries can be decoded without
// copying the whole archive into heap memory.
type mmapReaderAt struct {
	data []byte
}

func (m *mmapReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// OpenVideoTar traverses tarPath once to collect candidate entries,
// applies filter (if provided), and probes the surviving entries in
// parallel using up to maxThreads workers (-1 means hardware
// concurrency). Returned handles preserve archive order.
func OpenVideoTar(tarPath string, filter EntryFilter, maxThreads int, backend tensor.Backend, bridge tensor.Bridge) ([]*video.Handle, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", tarPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", tarPath, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("archive: mmap %s: %w", tarPath, err)
	}
	reader := &mmapReaderAt{data: data}

	entries, err := collectEntries(tarPath)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}

	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if filter == nil {
			kept = append(kept, e)
			continue
		}
		ok, err := filter(e)
		if err != nil {
			_ = unix.Munmap(data)
			return nil, err
		}
		if ok {
			kept = append(kept, e)
		}
	}

	if maxThreads < 0 {
		maxThreads = runtime.GOMAXPROCS(0)
	}
	if maxThreads < 1 {
		maxThreads = 1
	}

	handles := make([]*video.Handle, len(kept))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxThreads)
	for i, e := range kept {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := video.Open(e.Name, archiveOpener{reader: reader, entry: e}, bridge, backend)
			if err != nil {
				return fmt.Errorf("archive: probing %s: %w", e.Name, err)
			}
			handles[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	return handles, nil
}

// collectEntries does the single sequential TAR traversal pass,
// recording the byte offset and length of every regular file entry.
func collectEntries(tarPath string) ([]Entry, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", tarPath, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	var entries []Entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: reading tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("archive: locating entry offset: %w", err)
		}
		entries = append(entries, Entry{Name: hdr.Name, Offset: offset, Length: hdr.Size})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
	return entries, nil
}

// archiveOpener adapts one archive entry into a decoder.Opener,
// ignoring the path given to Open and always serving the entry's byte
// range from the memory-mapped archive.
type archiveOpener struct {
	reader *mmapReaderAt
	entry  Entry
}

func (a archiveOpener) Open(_ decoder.Source) (decoder.Decoder, error) {
	return decoder.AstiavOpener{}.Open(decoder.Source{
		Reader: a.reader,
		Offset: a.entry.Offset,
		Length: a.entry.Length,
	})
}
