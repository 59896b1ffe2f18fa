package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// Excluded reports whether a directory is left out of trees and watches.
func Excluded(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

// Tree lists root recursively. Folders sort before files.
func (s *Service) Tree(ctx context.Context, root string) ([]schema.TreeNode, error) {
	if strings.TrimSpace(root) == "" {
		return nil, schema.ErrEmptyPath
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open workspace %s: %w", root, errNotDir)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	return buildTree(ctx, root, entries), nil
}

func buildTree(ctx context.Context, dir string, entries []os.DirEntry) []schema.TreeNode {
	nodes := make([]schema.TreeNode, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if Excluded(name) {
				continue
			}
			node := schema.TreeNode{Name: name, Type: schema.NodeFolder, Path: path, Children: []schema.TreeNode{}}
			children, err := os.ReadDir(path)
			if err != nil {
				pslog.Ctx(ctx).Debug("workspace tree skip", "path", path, "err", err)
			} else {
				node.Children = buildTree(ctx, path, children)
			}
			nodes = append(nodes, node)
			continue
		}
		nodes = append(nodes, schema.TreeNode{Name: name, Type: schema.NodeFile, Path: path})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == schema.NodeFolder
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
	return nodes
}
