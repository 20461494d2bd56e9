package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File is one selected file of an Input.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Input is a file picker: the files a user selected, in order.
type Input struct {
	Files []File
}

type pathFile string

// PathFile selects a file on disk.
func PathFile(path string) File {
	return pathFile(path)
}

func (p pathFile) Name() string                 { return filepath.Base(string(p)) }
func (p pathFile) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

type memFile struct {
	name string
	data []byte
}

// BytesFile selects an in-memory file.
func BytesFile(name string, data []byte) File {
	return memFile{name: name, data: data}
}

func (m memFile) Name() string { return m.name }
func (m memFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// firstFile returns inputs[0].Files[0], or nil when there is none.
func firstFile(inputs []Input) File {
	if len(inputs) == 0 || len(inputs[0].Files) == 0 {
		return nil
	}
	return inputs[0].Files[0]
}
