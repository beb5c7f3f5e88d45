//go:build unix

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryFlock 对条目文件加跨进程 advisory 锁，LOCK_NB 保证不会阻塞。
func tryFlock(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
}

func funlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
