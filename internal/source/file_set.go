package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
)

// FileSet manages a collection of source files and provides offset/position resolution.
type FileSet struct {
	files   []File
	index   map[string]FileID // path -> id
	baseDir string            // базовая директория для относительных путей
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// NewFileSetWithBase создаёт FileSet с заданной базовой директорией.
func NewFileSetWithBase(baseDir string) *FileSet {
	fs := NewFileSet()
	fs.baseDir = baseDir
	return fs
}

// SetBaseDir устанавливает базовую директорию для относительных путей.
func (fileSet *FileSet) SetBaseDir(dir string) {
	fileSet.baseDir = dir
}

// BaseDir возвращает текущую базовую директорию.
func (fileSet *FileSet) BaseDir() string {
	if fileSet.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fileSet.baseDir
}

// Len returns the number of files (including superseded versions).
func (fileSet *FileSet) Len() int {
	return len(fileSet.files)
}

// Add stores a file from normalized bytes, computes LineIdx and Hash, and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	normalizedPath := normalizePath(path)

	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    hash,
		Flags:   flags,
	})
	// индекс всегда указывает на последнюю версию файла
	fileSet.index[normalizedPath] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content, flags := Normalize(content)
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds a virtual file (stdin, test, or generated) with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file metadata for the given ID.
// It panics on an unknown id; use Lookup when the id comes from outside.
func (fileSet *FileSet) Get(id FileID) *File {
	return &fileSet.files[id]
}

// Lookup is the checked variant of Get.
func (fileSet *FileSet) Lookup(id FileID) (*File, bool) {
	if int(id) >= len(fileSet.files) {
		return nil, false
	}
	return &fileSet.files[id], true
}

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// GetByPath возвращает *File по пути, если был загружен в этот FileSet.
func (fileSet *FileSet) GetByPath(path string) (*File, bool) {
	if id, ok := fileSet.index[normalizePath(path)]; ok {
		return &fileSet.files[id], true
	}
	return nil, false
}

// Resolve converts a span into line and column positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fileSet.files[span.File]
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// Offset converts a 1-based line/column pair into a byte offset.
// Columns past the end of the line are clamped to the line end.
func (fileSet *FileSet) Offset(id FileID, pos LineCol) (uint32, bool) {
	f, ok := fileSet.Lookup(id)
	if !ok {
		return 0, false
	}
	return f.Offset(pos)
}

// Offset converts a 1-based line/column pair into a byte offset within f.
func (f *File) Offset(pos LineCol) (uint32, bool) {
	if pos.Line == 0 || pos.Col == 0 {
		return 0, false
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}
	var start uint32
	if pos.Line > 1 {
		idx := int(pos.Line) - 2
		if idx >= len(f.LineIdx) {
			return 0, false
		}
		start = f.LineIdx[idx] + 1
	}
	end := lenContent
	if idx := int(pos.Line) - 1; idx < len(f.LineIdx) {
		end = f.LineIdx[idx]
	}
	off := start + pos.Col - 1
	if off > end {
		off = end
	}
	return off, true
}

// GetLine возвращает строку с заданным номером (1-based) из файла.
// Если строка не существует, возвращает пустую строку.
func (f *File) GetLine(lineNum uint32) string {
	start, ok := f.Offset(LineCol{Line: lineNum, Col: 1})
	if !ok {
		return ""
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}
	if start >= lenContent {
		return ""
	}
	end := lenContent
	if idx := int(lineNum) - 1; idx < len(f.LineIdx) {
		end = f.LineIdx[idx]
	}
	return string(f.Content[start:end])
}

// Restore re-applies the BOM and CRLF endings stripped on Load so that content
// written back to disk keeps the file's original conventions.
func (f *File) Restore(content []byte) []byte {
	out := content
	if f.Flags&FileNormalizedCRLF != 0 {
		out = toCRLF(out)
	}
	if f.Flags&FileHadBOM != 0 {
		out = append([]byte{0xEF, 0xBB, 0xBF}, out...)
	}
	return out
}

// FormatPath форматирует путь к файлу в зависимости от режима.
// mode: "absolute", "relative", "basename", "auto"
// baseDir: базовая директория для относительных путей (игнорируется для других режимов)
func (f *File) FormatPath(mode, baseDir string) string {
	return FormatPath(f.Path, mode, baseDir)
}

// FormatPath formats an arbitrary path with the same modes as File.FormatPath.
func FormatPath(path, mode, baseDir string) string {
	switch mode {
	case "absolute":
		if abs, err := AbsolutePath(path); err == nil {
			return abs
		}
		return path

	case "relative":
		if baseDir == "" {
			if wd, err := os.Getwd(); err == nil {
				baseDir = wd
			}
		}
		if rel, err := RelativePath(path, baseDir); err == nil {
			return rel
		}
		return path

	case "basename":
		return BaseName(path)

	case "auto":
		// короткий или относительный путь - как есть, иначе basename
		if len(path) < 40 || !filepath.IsAbs(path) {
			return path
		}
		return BaseName(path)

	default:
		return path
	}
}
