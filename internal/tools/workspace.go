package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// resolveWorkspacePath expands ~ and, when root is non-empty, rejects
// paths that escape it.
func resolveWorkspacePath(path, root string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if root != "" {
		absRoot, _ := filepath.Abs(root)
		if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(os.PathSeparator)) {
			return "", fmt.Errorf("path %s is outside the workspace", path)
		}
	}
	return resolved, nil
}

// ReadFileTool reads a file from the agent workspace.
type ReadFileTool struct{ Root string }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file in the workspace." }

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The file path to read"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	resolved, err := resolveWorkspacePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: file not found: %s", path), nil
	}
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: not a file: %s", path), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	return string(data), nil
}

// WriteFileTool writes a file in the agent workspace, creating parent
// directories as needed.
type WriteFileTool struct{ Root string }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file in the workspace." }

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "The file path to write"},
			"content": map[string]any{"type": "string", "description": "The content to write"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	resolved, err := resolveWorkspacePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}

// ListDirTool lists a workspace directory.
type ListDirTool struct{ Root string }

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a workspace directory." }

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "The directory to list"},
		},
		"required": []string{"path"},
	}
}

func (t *ListDirTool) Execute(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	resolved, err := resolveWorkspacePath(path, t.Root)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: directory not found: %s", path), nil
	}
	if err != nil {
		return fmt.Sprintf("Error listing directory: %v", err), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: not a directory: %s", path), nil
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return fmt.Sprintf("Error listing directory: %v", err), nil
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var lines []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	return strings.Join(lines, "\n"), nil
}
