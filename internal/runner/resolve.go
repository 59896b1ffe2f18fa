package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"pkt.systems/devdeck/schema"
)

// FileType is a runnable file category derived from the extension.
type FileType string

const (
	// FileTypePython runs through the Python interpreter.
	FileTypePython FileType = "python"
	// FileTypeNode runs through Node.js.
	FileTypeNode FileType = "node"
	// FileTypeHTML opens in the platform default handler.
	FileTypeHTML FileType = "html"
)

// Interpreters overrides interpreter binaries per file type.
type Interpreters struct {
	Python string
	Node   string
}

// Plan is the fully resolved process invocation for a file.
type Plan struct {
	Type    FileType
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
}

// String renders the command line for diagnostics.
func (p Plan) String() string {
	if len(p.Args) == 0 {
		return p.Command
	}
	return p.Command + " " + strings.Join(p.Args, " ")
}

// FileTypeFor maps a path to its file type by case-insensitive extension.
func FileTypeFor(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return FileTypePython, true
	case ".js", ".mjs", ".cjs":
		return FileTypeNode, true
	case ".html", ".htm":
		return FileTypeHTML, true
	default:
		return "", false
	}
}

// Resolve returns the invocation for path on goos. The file's base name is
// passed as a single argument and no shell is involved.
func Resolve(path, goos string, overrides Interpreters) (Plan, error) {
	if strings.TrimSpace(path) == "" {
		return Plan{}, schema.ErrEmptyPath
	}
	fileType, ok := FileTypeFor(path)
	if !ok {
		ext := filepath.Ext(path)
		if ext == "" {
			ext = filepath.Base(path)
		}
		return Plan{}, fmt.Errorf("%w: %s", schema.ErrUnsupportedFileType, ext)
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	switch fileType {
	case FileTypePython:
		command := overrides.Python
		if command == "" {
			command = "python3"
			if goos == "windows" {
				command = "python"
			}
		}
		env := map[string]string{
			"PYTHONUTF8":       "1",
			"PYTHONIOENCODING": "utf-8",
			"PYTHONUNBUFFERED": "1",
		}
		if goos != "windows" {
			env["LANG"] = "C.UTF-8"
			env["LC_ALL"] = "C.UTF-8"
		}
		return Plan{
			Type:    fileType,
			Command: command,
			Args:    []string{"-X", "utf8", "-u", base},
			Dir:     dir,
			Env:     env,
		}, nil
	case FileTypeNode:
		command := overrides.Node
		if command == "" {
			command = "node"
		}
		return Plan{Type: fileType, Command: command, Args: []string{base}, Dir: dir}, nil
	default:
		switch goos {
		case "windows":
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			return Plan{Type: fileType, Command: "rundll32", Args: []string{"url.dll,FileProtocolHandler", abs}, Dir: dir}, nil
		case "darwin":
			return Plan{Type: fileType, Command: "open", Args: []string{base}, Dir: dir}, nil
		default:
			return Plan{Type: fileType, Command: "xdg-open", Args: []string{base}, Dir: dir}, nil
		}
	}
}
