package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipeaalzamora/el-blog-del-ceo/api"
	"github.com/pipeaalzamora/el-blog-del-ceo/cache"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
)

type cacheOptions struct {
	url     string
	token   string
	timeout time.Duration
}

func (o *cacheOptions) client() (*httpx.Client, error) {
	if o.token == "" {
		return nil, errors.New("admin token required (--token or BLOG_ADMIN_TOKEN)")
	}
	return httpx.NewClient(
		httpx.WithBaseURL(strings.TrimRight(o.url, "/")),
		httpx.WithClientTimeout(o.timeout),
		httpx.WithHeaders(map[string]string{api.AdminTokenHeader: o.token}),
	), nil
}

func newCacheCmd() *cobra.Command {
	opts := &cacheOptions{}
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate a running server's caches",
	}
	url := os.Getenv("BLOG_URL")
	if url == "" {
		url = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&opts.url, "url", url, "server base URL (env BLOG_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("BLOG_ADMIN_TOKEN"), "admin token (env BLOG_ADMIN_TOKEN)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		newCacheStatsCmd(opts),
		newCacheClearCmd(opts),
		newCacheInvalidateCmd(opts),
		newCacheWarmupCmd(opts),
	)
	return cmd
}

func newCacheStatsCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "List every cache with its size and keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			var out struct {
				Caches    []cache.Stats `json:"caches"`
				TotalSize int           `json:"totalSize"`
			}
			if _, err := client.Get(cmd.Context(), "/api/admin/cache", &out); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CACHE\tSIZE\tKEYS")
			for _, st := range out.Caches {
				fmt.Fprintf(w, "%s\t%d\t%s\n", st.Name, st.Size, strings.Join(st.Keys, ","))
			}
			fmt.Fprintf(w, "total\t%d\t\n", out.TotalSize)
			return w.Flush()
		},
	}
}

func newCacheClearCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return messageCall(cmd, opts, func(c *httpx.Client, out any) error {
				_, err := c.Delete(cmd.Context(), "/api/admin/cache", out)
				return err
			})
		},
	}
}

func newCacheInvalidateCmd(opts *cacheOptions) *cobra.Command {
	var key, pattern string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop one key or every key containing a pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (key == "") == (pattern == "") {
				return errors.New("exactly one of --key or --pattern is required")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			var out struct {
				Message     string `json:"message"`
				Invalidated int    `json:"invalidated"`
			}
			body := map[string]string{"key": key, "pattern": pattern}
			if _, err := client.Post(cmd.Context(), "/api/admin/cache/invalidate", body, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", out.Message, out.Invalidated)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "exact cache key")
	cmd.Flags().StringVar(&pattern, "pattern", "", "substring of the keys to drop")
	return cmd
}

func newCacheWarmupCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Prefetch the featured and recent posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return messageCall(cmd, opts, func(c *httpx.Client, out any) error {
				_, err := c.Post(cmd.Context(), "/api/admin/cache/warmup", nil, out)
				return err
			})
		},
	}
}

func messageCall(cmd *cobra.Command, opts *cacheOptions, call func(*httpx.Client, any) error) error {
	client, err := opts.client()
	if err != nil {
		return err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := call(client, &out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	return nil
}
