//go:build linux
// +build linux

package fileserver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Watcher notifies onChange(name) when a registered root or included
// source file's content actually changes, debounced by comparing
// BLAKE2b digests rather than a timer, so editors that rewrite a file
// without changing its bytes (an atomic save-then-touch) don't trigger
// a spurious re-assemble. Adapted from the teacher's inotify-based
// FileWatcher (filewatcher_unix.go) for watching assembler source
// files instead of a single Vibe67 source file.
type Watcher struct {
	fd       int
	watchMap map[int]string
	digests  map[string][]byte
	mu       sync.Mutex
	onChange func(string)
}

// NewWatcher creates an inotify-backed Watcher.
func NewWatcher(onChange func(string)) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init failed: %v", err)
	}
	return &Watcher{
		fd:       fd,
		watchMap: make(map[int]string),
		digests:  make(map[string][]byte),
		onChange: onChange,
	}, nil
}

// AddFile registers path for change notifications, recording its
// current content digest as the debounce baseline.
func (w *Watcher) AddFile(path string, contents []byte) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	wd, err := unix.InotifyAddWatch(w.fd, absPath, unix.IN_MODIFY|unix.IN_CLOSE_WRITE)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %v", absPath, err)
	}
	digest, err := ContentDigest(contents)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.watchMap[wd] = absPath
	w.digests[absPath] = digest
	w.mu.Unlock()
	return nil
}

// Run blocks, reading inotify events and invoking onChange for any
// watched file whose content digest actually changed.
func (w *Watcher) Run() {
	buf := make([]byte, unix.SizeofInotifyEvent*10)
	for {
		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			continue
		}

		offset := 0
		for offset < n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)
			if event.Mask&(unix.IN_MODIFY|unix.IN_CLOSE_WRITE) == 0 {
				continue
			}
			w.mu.Lock()
			path, ok := w.watchMap[int(event.Wd)]
			w.mu.Unlock()
			if ok {
				w.checkAndNotify(path)
			}
		}
	}
}

func (w *Watcher) checkAndNotify(path string) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return
	}
	digest, err := ContentDigest(contents)
	if err != nil {
		return
	}
	w.mu.Lock()
	prev := w.digests[path]
	changed := !digestsEqual(prev, digest)
	if changed {
		w.digests[path] = digest
	}
	w.mu.Unlock()
	if changed {
		w.onChange(path)
	}
}

func digestsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close releases the inotify file descriptor.
func (w *Watcher) Close() error {
	return unix.Close(w.fd)
}
