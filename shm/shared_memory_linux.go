// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	shmq "github.com/nxgtw/go-shmq"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	maxNameLen       = 255
	defaultShmPath   = "/dev/shm/"
	cShmfsSuperMagic = 0x01021994
	cRamfsMagic      = 0x858458f6
	// DirEnv overrides the shared memory directory lookup.
	DirEnv = "SHMQ_SHM_DIR"
)

var (
	shmPathOnce sync.Once
	shmPath     string
)

type mntent struct {
	fsname string
	dir    string
	fstype string
}

func doDestroyMemoryObject(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// glibc/sysdeps/posix/shm_open.c
func shmOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag|unix.O_CLOEXEC|unix.O_NOFOLLOW, perm)
}

// glibc/sysdeps/posix/shm-directory.h
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	nameLen := len(name)
	if nameLen == 0 || nameLen >= maxNameLen || strings.Contains(name, "/") {
		return "", errors.Wrapf(shmq.ErrInvalidName, "invalid shm name %q", name)
	}
	dir, err := shmDirectory()
	if err != nil {
		return "", errors.Wrap(err, "error building shared memory name")
	}
	return dir + name, nil
}

func shmDirectory() (string, error) {
	shmPathOnce.Do(locateShmFs)
	if len(shmPath) == 0 {
		return shmPath, errors.New("error locating the shared memory path")
	}
	return shmPath, nil
}

// glibc/sysdeps/unix/sysv/linux/shm-directory.c
func locateShmFs() {
	if dir := os.Getenv(DirEnv); len(dir) > 0 {
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
		shmPath = dir
		return
	}
	if checkShmPath(defaultShmPath) {
		shmPath = defaultShmPath
	} else {
		shmPath = shmFsFromMounts()
	}
}

func checkShmPath(path string) bool {
	if len(path) == 0 {
		return false
	}
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err != nil {
		return false
	}
	return isShmFs(int64(statfs.Type))
}

func isShmFs(fsType int64) bool {
	return fsType == cShmfsSuperMagic || fsType == cRamfsMagic
}

func shmFsFromMounts() string {
	var fsFile *os.File
	var err error
	if fsFile, err = os.Open("/proc/mounts"); err != nil {
		if fsFile, err = os.Open("/etc/fstab"); err != nil {
			return ""
		}
	}
	defer fsFile.Close()
	return shmFsFromReader(fsFile)
}

func shmFsFromReader(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		record := scanMountRecord(scanner.Text())
		if record == nil || (record.fstype != "tmpfs" && record.fstype != "shm") {
			continue
		}
		if result := record.dir; checkShmPath(result) {
			if !strings.HasSuffix(result, "/") {
				result += "/"
			}
			return result
		}
	}
	return ""
}

// scanMountRecord parses 'fsname dir type opts freq passno' line.
// Only the first three fields are used.
func scanMountRecord(record string) *mntent {
	fields := strings.Fields(record)
	if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	return &mntent{fsname: fields[0], dir: fields[1], fstype: fields[2]}
}
