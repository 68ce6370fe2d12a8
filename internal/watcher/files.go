package watcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// stampLayout suffixes relocated files so repeated drops never collide.
const stampLayout = "20060102_150405"

// stampedName returns "<stem>_<timestamp>", adding a counter when a file
// with that base already exists in dir with ext or, for failed files, as
// an .error sidecar.
func stampedName(dir, name string, ts time.Time, sidecar bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "_" + ts.Format(stampLayout)

	base := stem
	for n := 2; ; n++ {
		if !exists(filepath.Join(dir, base+ext)) && !(sidecar && exists(filepath.Join(dir, base+errorExt))) {
			return base
		}
		base = stem + "_" + strconv.Itoa(n)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("moving %s to %s: %w", src, dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing %s after copy: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}
