package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	maxReadSize  = 256 * 1024
	maxWriteSize = 1024 * 1024
	maxListed    = 200
)

var errOutsideWorkspace = errors.New("path is outside the workspace")

// FilesystemTool manages files inside one workspace directory. Every
// operation goes through an [os.Root], so paths cannot escape it via ".."
// or symlinks.
type FilesystemTool struct {
	dir string // "" means the process cwd
}

func NewFilesystemTool(dir string) *FilesystemTool { return &FilesystemTool{dir: dir} }

func (t *FilesystemTool) Def() ToolDef {
	return ToolDef{
		Name:        "filesystem",
		Description: "Read and manage files in the user's workspace directory. Paths are relative to the workspace; absolute paths must point inside it. Results are JSON.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"operation": {
					Type:        "string",
					Description: "read, write, list, mkdir, move, delete or info",
					Enum:        []string{"read", "write", "list", "mkdir", "move", "delete", "info"},
				},
				"path": {
					Type:        "string",
					Description: "File or directory path. Empty lists the workspace root.",
				},
				"content": {
					Type:        "string",
					Description: "File content (write only, max 1MB)",
				},
				"dest": {
					Type:        "string",
					Description: "Destination path (move only)",
				},
			},
			Required: []string{"operation"},
		},
	}
}

type fsArgs struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content"`
	Dest      string `json:"dest"`
}

type fsEntry struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size"`
}

type fsInfo struct {
	Path     string    `json:"path"`
	Dir      bool      `json:"dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Mode     string    `json:"mode"`
}

func (t *FilesystemTool) Call(_ context.Context, argsJSON string) string {
	var args fsArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("error: invalid arguments: %v", err)
	}

	dir := t.dir
	if dir == "" {
		dir = "."
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Sprintf("error: open workspace: %v", err)
	}
	defer root.Close()

	ws := workspace{root: root}
	path, err := ws.rel(args.Path)
	if err != nil {
		return "error: " + err.Error()
	}
	slog.Debug("filesystem", "operation", args.Operation, "path", path, "workspace", root.Name())

	if args.Path == "" && args.Operation != "list" && args.Operation != "info" {
		return "error: path is required"
	}

	var res any
	switch args.Operation {
	case "read":
		res, err = ws.read(path)
	case "write":
		res, err = ws.write(path, args.Content)
	case "list":
		res, err = ws.list(path)
	case "mkdir":
		err = root.MkdirAll(path, 0755)
		res = map[string]any{"path": ws.display(path), "created": true}
	case "move":
		res, err = ws.move(path, args.Dest)
	case "delete":
		err = root.Remove(path)
		res = map[string]any{"path": ws.display(path), "deleted": true}
	case "info":
		res, err = ws.info(path)
	default:
		return fmt.Sprintf("error: unknown operation %q (use read, write, list, mkdir, move, delete or info)", args.Operation)
	}
	if err != nil {
		return fmt.Sprintf("error: %s: %v", args.Operation, err)
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf("error: encode result: %v", err)
	}
	return string(out)
}

type workspace struct {
	root *os.Root
}

// rel turns a user path into one relative to the workspace root.
func (w workspace) rel(p string) (string, error) {
	if p == "" {
		return ".", nil
	}
	if !filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	base, err := filepath.Abs(w.root.Name())
	if err != nil {
		return "", err
	}
	r, err := filepath.Rel(base, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideWorkspace, p)
	}
	return r, nil
}

func (w workspace) display(rel string) string {
	abs, err := filepath.Abs(filepath.Join(w.root.Name(), rel))
	if err != nil {
		return rel
	}
	return abs
}

func (w workspace) read(path string) (any, error) {
	f, err := w.root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory, use operation=list", path)
	}
	data, err := io.ReadAll(io.LimitReader(f, maxReadSize))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"path":      w.display(path),
		"size":      st.Size(),
		"content":   string(data),
		"truncated": st.Size() > maxReadSize,
	}, nil
}

func (w workspace) write(path, content string) (any, error) {
	if len(content) > maxWriteSize {
		return nil, fmt.Errorf("content too large (%dKB, max 1MB)", len(content)/1024)
	}
	if parent := filepath.Dir(path); parent != "." {
		if err := w.root.MkdirAll(parent, 0755); err != nil {
			return nil, err
		}
	}
	if err := w.root.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, err
	}
	return map[string]any{"path": w.display(path), "bytes": len(content)}, nil
}

func (w workspace) list(path string) (any, error) {
	f, err := w.root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dirents, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(dirents, func(a, b os.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	entries := make([]fsEntry, 0, min(len(dirents), maxListed))
	for _, d := range dirents[:min(len(dirents), maxListed)] {
		e := fsEntry{Name: d.Name(), Dir: d.IsDir()}
		if info, err := d.Info(); err == nil && !d.IsDir() {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return map[string]any{
		"path":    w.display(path),
		"entries": entries,
		"more":    max(len(dirents)-maxListed, 0),
	}, nil
}

func (w workspace) move(src, dest string) (any, error) {
	if dest == "" {
		return nil, errors.New("dest is required")
	}
	to, err := w.rel(dest)
	if err != nil {
		return nil, err
	}
	if parent := filepath.Dir(to); parent != "." {
		if err := w.root.MkdirAll(parent, 0755); err != nil {
			return nil, err
		}
	}
	if err := w.root.Rename(src, to); err != nil {
		return nil, err
	}
	return map[string]any{"from": w.display(src), "to": w.display(to)}, nil
}

func (w workspace) info(path string) (any, error) {
	st, err := w.root.Stat(path)
	if err != nil {
		return nil, err
	}
	return fsInfo{
		Path:     w.display(path),
		Dir:      st.IsDir(),
		Size:     st.Size(),
		Modified: st.ModTime().UTC(),
		Mode:     st.Mode().String(),
	}, nil
}
