package pe

import "errors"

// Parse failures. Callers match them with errors.Is; the returned errors
// carry the offset or value that triggered them.
var (
	ErrNotAPEFile                    = errors.New("不是有效的PE文件")
	ErrTruncatedFile                 = errors.New("文件被截断")
	ErrUnsupportedDataDirectoryCount = errors.New("不支持的数据目录数量")
)
