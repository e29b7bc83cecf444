package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
)

// 错误定义
var (
	ErrExists   = errors.New("stored file already exists")
	ErrNotExist = errors.New("stored file does not exist")
	ErrBadName  = errors.New("invalid stored file name")
)

// ValidName 存储文件名必须是不以点开头的单层文件名，"." 与 ".." 均不合法
func ValidName(name string) bool {
	return name != "" &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.HasPrefix(name, ".")
}

// Store 附件文件存储，名称为扁平的存储文件名
type Store interface {
	// Put writes r under name. It never overwrites: an occupied name yields ErrExists.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Path 存储位置描述，写入 attachments.file_path
	Path(name string) string
}

// New 按配置创建存储
func New(ctx context.Context, cfg config.StorageConfig, mc config.MinIOConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "minio":
		return NewMinIOStore(ctx, mc)
	}
	return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
}
