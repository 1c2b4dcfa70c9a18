package tools

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Exists reports whether path names an existing file, directory, or device node.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// IsWithin reports whether path is root or lies below it.
func IsWithin(path string, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}

// CopyFile copies src to dst, creating parent directories of dst as needed.
// It returns the number of bytes written.
func CopyFile(src string, dst string, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, FSErr("mkdir", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, FSErr("open", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, FSErr("create", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, FSErr("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return n, FSErr("close", dst, err)
	}
	return n, nil
}

// TreeSize returns the total size in bytes of the regular files under root.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return FSErr("walk", path, walkErr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return FSErr("stat", path, err)
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// CopyTree copies the directory tree at src into dst, preserving structure.
//
// The traversal is iterative. A failing file or directory does not stop the
// copy; every failure is collected and returned joined, each as a
// *FilesystemError naming its path. onCopied, when set, is called after each
// file with the bytes written.
func CopyTree(src string, dst string, onCopied func(path string, n int64)) error {
	type frame struct{ src, dst string }

	var errs []error
	stack := []frame{{src: src, dst: dst}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := os.MkdirAll(top.dst, 0o755); err != nil {
			errs = append(errs, FSErr("mkdir", top.dst, err))
			continue
		}
		entries, err := os.ReadDir(top.src)
		if err != nil {
			errs = append(errs, FSErr("readdir", top.src, err))
			continue
		}
		// Push in reverse so directories are visited in lexical order.
		for i := len(entries) - 1; i >= 0; i-- {
			entry := entries[i]
			from := filepath.Join(top.src, entry.Name())
			to := filepath.Join(top.dst, entry.Name())
			switch {
			case entry.IsDir():
				stack = append(stack, frame{src: from, dst: to})
			case entry.Type().IsRegular():
				info, err := entry.Info()
				if err != nil {
					errs = append(errs, FSErr("stat", from, err))
					continue
				}
				n, err := CopyFile(from, to, info.Mode().Perm())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if onCopied != nil {
					onCopied(from, n)
				}
			}
		}
	}
	return errors.Join(errs...)
}
