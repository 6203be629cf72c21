// Package aligncache caches computed word alignments on disk. Alignment is
// by far the most expensive step of terminology encoding, and training and
// inference runs revisit the same sentence pairs, so hits skip the aligner
// entirely.
//
// Cache entries are one JSON file per sentence-pair digest. Writes go to a
// temporary file and are renamed into place under a lock file, so multiple
// processes sharing a cache directory coordinate instead of clobbering each
// other.
package aligncache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/internal/files"
	"github.com/apedit/go-postedit/nlp"
)

// DirCreationPerm is the permission used when creating the cache directory.
const DirCreationPerm = os.FileMode(0755)

// Cache wraps an nlp.Aligner with a disk cache.
type Cache struct {
	aligner nlp.Aligner
	dir     string
}

// Compile time assert that Cache implements nlp.Aligner.
var _ nlp.Aligner = &Cache{}

// New creates a cache over aligner storing entries under dir.
func New(aligner nlp.Aligner, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, DirCreationPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create alignment cache directory %q", dir)
	}
	return &Cache{aligner: aligner, dir: dir}, nil
}

// Align implements nlp.Aligner. A corrupt cache entry is recomputed and
// overwritten, not fatal.
func (c *Cache) Align(src, tgt []string) (nlp.Alignment, error) {
	path := c.entryPath(src, tgt)
	if links, err := readEntry(path); err == nil {
		return nlp.FromLinks(links), nil
	} else if !os.IsNotExist(errors.Cause(err)) {
		klog.Warningf("Ignoring unreadable alignment cache entry %q: %v", path, err)
		// Clear it so the recomputed alignment can be stored.
		if err := os.Remove(path); err != nil {
			klog.Warningf("Error removing corrupt cache entry %q: %v", path, err)
		}
	}

	alignment, err := c.aligner.Align(src, tgt)
	if err != nil {
		return nil, err
	}
	if err := c.writeEntry(path, alignment.Links()); err != nil {
		// The cache is an optimization; a failed write only costs a recompute.
		klog.Warningf("Failed to write alignment cache entry %q: %v", path, err)
	}
	return alignment, nil
}

func (c *Cache) entryPath(src, tgt []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(src, " ")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(tgt, " ")))
	return filepath.Join(c.dir, hex.EncodeToString(h.Sum(nil))+".json")
}

func readEntry(path string) ([]nlp.Link, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var links []nlp.Link
	if err := json.Unmarshal(content, &links); err != nil {
		return nil, errors.Wrapf(err, "failed to parse alignment cache entry %q", path)
	}
	return links, nil
}

// writeEntry stores links at path, writing to path+".tmp" and renaming into
// place while holding path+".lock".
func (c *Cache) writeEntry(path string, links []nlp.Link) error {
	content, err := json.Marshal(links)
	if err != nil {
		return errors.Wrap(err, "failed to encode alignment links")
	}

	lockPath := path + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		if files.Exists(path) {
			// Some concurrent process already cached this pair.
			return
		}
		tmpPath := path + ".tmp"
		if err := os.WriteFile(tmpPath, content, 0644); err != nil {
			mainErr = errors.Wrapf(err, "writing temporary cache entry %q", tmpPath)
			return
		}
		if err := os.Rename(tmpPath, path); err != nil {
			_ = os.Remove(tmpPath)
			mainErr = errors.Wrapf(err, "failed to move cache entry %q to %q", tmpPath, path)
			return
		}
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("Error removing lock file %q: %v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q", lockPath)
	}
	return nil
}

// execOnFileLock opens the lockPath file (or creates it if missing), locks
// it, and executes fn. If lockPath is already locked, it polls with a 50 to
// 100 ms period until it acquires the lock.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(50+rand.Intn(50)))
	}

	// Unlock in a deferred function, so it happens even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil && err == nil {
			err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
		}
	}()

	fn()
	return
}
