package sysinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const mb = 1024 * 1024

// Volume reports free and total space of the filesystem holding a path,
// in MiB.
type Volume struct {
	Name      string `json:"name"`
	Available uint64 `json:"available"`
	Total     uint64 `json:"total"`
}

// Space stats the filesystem containing path.
func Space(name, path string) (Volume, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Volume{Name: name}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Volume{
		Name:      name,
		Available: st.Bavail * bsize / mb,
		Total:     st.Blocks * bsize / mb,
	}, nil
}
