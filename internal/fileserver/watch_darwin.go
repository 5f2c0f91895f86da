//go:build darwin
// +build darwin

package fileserver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Watcher is the kqueue-backed equivalent of the Linux inotify Watcher,
// adapted from the teacher's filewatcher_darwin.go.
type Watcher struct {
	kq       int
	watchMap map[int]string
	digests  map[string][]byte
	mu       sync.Mutex
	onChange func(string)
}

// NewWatcher creates a kqueue-backed Watcher.
func NewWatcher(onChange func(string)) (*Watcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue failed: %v", err)
	}
	return &Watcher{
		kq:       kq,
		watchMap: make(map[int]string),
		digests:  make(map[string][]byte),
		onChange: onChange,
	}, nil
}

// AddFile registers path for change notifications.
func (w *Watcher) AddFile(path string, contents []byte) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fd, err := unix.Open(absPath, unix.O_EVTONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", absPath, err)
	}

	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_EXTEND,
	}
	if _, err := unix.Kevent(w.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(fd)
		return fmt.Errorf("kevent register failed for %s: %v", absPath, err)
	}

	digest, err := ContentDigest(contents)
	if err != nil {
		unix.Close(fd)
		return err
	}

	w.mu.Lock()
	w.watchMap[fd] = absPath
	w.digests[absPath] = digest
	w.mu.Unlock()
	return nil
}

// Run blocks, reading kqueue events and invoking onChange for any
// watched file whose content digest actually changed.
func (w *Watcher) Run() {
	events := make([]unix.Kevent_t, 10)
	for {
		n, err := unix.Kevent(w.kq, nil, events, nil)
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)
			w.mu.Lock()
			path, ok := w.watchMap[fd]
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

// Close releases the kqueue file descriptor.
func (w *Watcher) Close() error {
	return unix.Close(w.kq)
}
