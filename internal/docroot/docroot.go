package docroot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound は対象ファイルが存在しない場合
	ErrNotFound = errors.New("file not found")
	// ErrIsDirectory は対象がディレクトリの場合
	ErrIsDirectory = errors.New("is a directory")
)

// ReadError は存在はするが読み込めなかった場合のエラー
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Source はドキュメントルートからファイルを読み出す
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Name() string
}

// Resolve はリクエストパスをルートからの相対名に変換する
// "/" はデフォルトファイル、それ以外は先頭の区切り文字を取り除く
// ".." はルートより上に出ないように正規化される
func Resolve(requestPath, defaultFile string) string {
	if requestPath == "/" {
		return defaultFile
	}

	name := strings.TrimPrefix(requestPath, "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return defaultFile
	}
	return name
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}
