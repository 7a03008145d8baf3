// Package walk traverses a prefix tree depth-first in pre-order,
// building on repeated directory streams.
package walk

import (
	"context"
	"errors"
	"io"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/list"
)

// SkipDir is returned from a Func to prune the directory it was
// called on without failing the walk.
var SkipDir = errors.New("skip this directory")

// Func is called for each path visited. err is non-nil when listing a
// directory failed; the function decides whether that fails the walk.
type Func func(p *fs.Path, err error) error

// Walk visits root and everything below it. Directories are visited
// before their contents. A visited-prefix guard defends against
// pathological keys producing listing loops.
func Walk(ctx context.Context, lister fs.Lister, root *fs.Path, fn Func) error {
	visited := map[string]bool{}
	return walk(ctx, lister, root, fn, visited)
}

func walk(ctx context.Context, lister fs.Lister, dir *fs.Path, fn Func, visited map[string]bool) error {
	key := dir.Key()
	if visited[key] {
		fs.Debugf(dir, "already visited, skipping")
		return nil
	}
	visited[key] = true
	if err := fn(dir, nil); err != nil {
		if err == SkipDir {
			return nil
		}
		return err
	}
	stream := list.New(ctx, lister, dir, nil)
	defer func() {
		_ = stream.Close()
	}()
	for {
		p, err := stream.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fn(dir, err)
		}
		if p.IsDir() {
			if err := walk(ctx, lister, p, fn, visited); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, nil); err != nil && err != SkipDir {
			return err
		}
	}
}
