package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/relayfs/pkg/wsproto"
)

// StatFileElem stats an admitted file under storage_root/<username>/<name>
// and returns the directory-entry metadata a FileSendable reply carries.
// Go's os.FileInfo has no portable creation time, so create_t and modify_t
// both report ModTime; access_t reports the current stat call's time since
// the standard library does not expose atime either.
func (c *Coordinator) StatFileElem(username, name string) (*wsproto.FileListElem, error) {
	path := filepath.Join(c.storageRoot, username, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("upload: stat %s: %w", path, err)
	}

	const layout = "2006-01-02 15:04:05"
	modified := info.ModTime().UTC().Format(layout)

	return &wsproto.FileListElem{
		Name:    name,
		Size:    formatSize(uint64(info.Size())),
		CreateT: modified,
		ModifyT: modified,
		AccessT: time.Now().UTC().Format(layout),
	}, nil
}

// FilePath returns the on-disk path for an admitted file, for callers that
// stream its bytes back out (the HTTP download boundary) rather than stat it.
func (c *Coordinator) FilePath(username, name string) string {
	return filepath.Join(c.storageRoot, username, name)
}

// formatSize renders a byte count the same way the original client-facing
// listing did: plain bytes, then Kb/Mb/Gb at binary thresholds.
func formatSize(bytes uint64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%db", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1fKb", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.3fMb", float64(bytes)/1024/1024)
	default:
		return fmt.Sprintf("%.5fGb", float64(bytes)/1024/1024/1024)
	}
}
