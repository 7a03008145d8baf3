package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	s3 "github.com/objfs/s3fs/backend/s3"
	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/walk"
)

var lsCmd = &cobra.Command{
	Use:   "ls <uri>",
	Short: "list the children of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		dir, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		stream, err := provider.NewDirectoryStream(ctx, dir, nil)
		if err != nil {
			return err
		}
		defer func() {
			_ = stream.Close()
		}()
		for {
			p, err := stream.Next(ctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(p.Key())
		}
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <uri>",
	Short: "walk a directory tree depth-first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		dir, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		fsys, err := provider.GetFileSystem(args[0])
		if err != nil {
			return err
		}
		return walk.Walk(ctx, fsys, dir, func(p *fs.Path, err error) error {
			if err != nil {
				return err
			}
			depth := p.NameCount()
			fmt.Printf("%s%s\n", strings.Repeat("  ", depth), name(p))
			return nil
		})
	},
}

// name renders the final segment with the directory marker
func name(p *fs.Path) string {
	if p.IsRoot() {
		return "/"
	}
	if p.IsDir() {
		return p.Base() + "/"
	}
	return p.Base()
}

func init() {
	root.AddCommand(lsCmd, treeCmd)
}
