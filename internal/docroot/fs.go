package docroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSSource は afero.Fs 上のファイルを返す
type FSSource struct {
	fs   afero.Fs
	name string
}

// Ensure FSSource implements Source
var _ Source = (*FSSource)(nil)

// NewFSSource は任意の afero.Fs からソースを作成する
func NewFSSource(fs afero.Fs, name string) *FSSource {
	return &FSSource{
		fs:   fs,
		name: name,
	}
}

// NewOSSource は root ディレクトリを読み取り専用で公開するソースを作成する
func NewOSSource(root string) (*FSSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root dir %q: %w", root, err)
	}

	osFs := afero.NewOsFs()
	isDir, err := afero.IsDir(osFs, abs)
	if err != nil {
		return nil, fmt.Errorf("root dir %q: %w", abs, err)
	}
	if !isDir {
		return nil, fmt.Errorf("root dir %q is not a directory", abs)
	}

	fs := afero.NewReadOnlyFs(afero.NewBasePathFs(osFs, abs))
	return NewFSSource(fs, abs), nil
}

// ReadFile はファイル全体を読み込む
func (s *FSSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Name: name, Err: err}
	}

	info, err := s.fs.Stat(name)
	if err != nil {
		return nil, s.classify(name, err)
	}
	if info.IsDir() {
		return nil, &ReadError{Name: name, Err: ErrIsDirectory}
	}

	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, s.classify(name, err)
	}
	return data, nil
}

// Name はソース名を返す
func (s *FSSource) Name() string {
	return s.name
}

func (s *FSSource) classify(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return notFound(name)
	}
	return &ReadError{Name: name, Err: err}
}
