package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	s3 "github.com/objfs/s3fs/backend/s3"
)

var catCmd = &cobra.Command{
	Use:   "cat <uri>",
	Short: "write an object to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		path, err := resolve(ctx, provider, args[0])
		if err != nil {
			return err
		}
		in, err := provider.NewInputStream(ctx, path)
		if err != nil {
			return err
		}
		defer func() {
			_ = in.Close()
		}()
		_, err = io.Copy(os.Stdout, in)
		return err
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local-file> <uri>",
	Short: "upload a local file as an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider := s3.DefaultProvider
		path, err := resolve(ctx, provider, args[1])
		if err != nil {
			return err
		}
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() {
			_ = in.Close()
		}()
		out, err := provider.NewWriteChannel(ctx, path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Abort()
			return err
		}
		return out.Close()
	},
}

func init() {
	root.AddCommand(catCmd, putCmd)
}
