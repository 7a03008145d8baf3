package main

import (
	"fmt"

	"github.com/spf13/cobra"

	s3 "github.com/objfs/s3fs/backend/s3"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <uri>",
	Short: "create a directory marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		dir, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		return provider.CreateDirectory(ctx, dir)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <uri>",
	Short: "delete an object or an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		path, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		return provider.Delete(ctx, path)
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <uri>",
	Short: "print the attributes of an object or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		path, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		attrs, err := provider.ReadAttributes(ctx, path)
		if err != nil {
			return err
		}
		kind := "file"
		if attrs.Dir {
			kind = "directory"
		}
		fmt.Printf("%s\t%d\t%s\t%s\n", kind, attrs.Size, attrs.ModTime.Format("2006-01-02 15:04:05"), path.URI())
		return nil
	},
}

var replace bool

var cpCmd = &cobra.Command{
	Use:   "cp <src-uri> <dst-uri>",
	Short: "copy an object, server-side within one filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		src, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		dst, err := resolve(ctx, provider, args[1])
		if err != nil {
			return err
		}
		return provider.Copy(ctx, src, dst, s3.CopyOptions{ReplaceExisting: replace})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src-uri> <dst-uri>",
	Short: "move an object (copy then delete, not atomic)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		src, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		dst, err := resolve(ctx, provider, args[1])
		if err != nil {
			return err
		}
		return provider.Move(ctx, src, dst, s3.CopyOptions{ReplaceExisting: replace})
	},
}

func init() {
	cpCmd.Flags().BoolVar(&replace, "replace", false, "replace an existing destination")
	mvCmd.Flags().BoolVar(&replace, "replace", false, "replace an existing destination")
	root.AddCommand(mkdirCmd, rmCmd, statCmd, cpCmd, mvCmd)
}
