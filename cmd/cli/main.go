// Package main provides the logo-cli tool. It runs the same pipeline as the
// HTTP server, in-process.
//
// Run with: go run ./cmd/cli extract example.com
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/domain-logo-service/internal/app"
	"github.com/fleveque/domain-logo-service/internal/config"
	"github.com/fleveque/domain-logo-service/internal/domain"
	"github.com/fleveque/domain-logo-service/internal/service"
	"github.com/fleveque/domain-logo-service/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd builds the command tree:
// logo-cli extract example.com --force
// logo-cli import --file domains.txt
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "logo-cli",
		Short:        "Domain logo service CLI tools",
		SilenceUsage: true,
	}

	root.AddCommand(
		extractCmd(),
		importCmd(),
		getCmd(),
		listCmd(),
		attemptsCmd(),
		exportCmd(),
		deleteCmd(),
	)
	return root
}

// withService loads config, builds the pipeline and runs fn with a context
// cancelled on Ctrl+C.
func withService(fn func(ctx context.Context, svc *service.LogoService, logger *zap.Logger) error) error {
	cfg, err := config.Load(os.Getenv("LOGO_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for CLI
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("releasing resources", zap.Error(err))
		}
	}()

	return fn(ctx, a.Service, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func extractCmd() *cobra.Command {
	var name string
	var force bool

	cmd := &cobra.Command{
		Use:   "extract <domain>",
		Short: "Resolve a domain to a stored logo, acquiring it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, _ *zap.Logger) error {
				logo, err := svc.Extract(ctx, args[0], name, force)
				if err != nil {
					return err
				}
				return printJSON(logo)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the domain)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-acquire even when a logo is stored")
	return cmd
}

func importCmd() *cobra.Command {
	var file string
	var concurrency int
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk extract logos for a file of domains, one per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			domains, err := readDomains(file)
			if err != nil {
				return err
			}
			domains, invalid := splitValid(domains)
			for _, d := range invalid {
				fmt.Fprintf(os.Stderr, "skipping invalid domain %q\n", d)
			}
			return withService(func(ctx context.Context, svc *service.LogoService, logger *zap.Logger) error {
				return runImport(ctx, svc, domains, concurrency, force, logger)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one domain per line; # starts a comment")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Domains extracted in parallel")
	cmd.Flags().BoolVar(&force, "force", false, "Re-acquire logos that are already stored")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readDomains(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening domain list: %w", err)
	}
	defer f.Close()

	var domains []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading domain list: %w", err)
	}
	return domains, nil
}

// splitValid separates lines that normalize to a domain from those that do
// not, keeping input order.
func splitValid(lines []string) (valid, invalid []string) {
	for _, l := range lines {
		if domain.IsValid(l) {
			valid = append(valid, l)
		} else {
			invalid = append(invalid, l)
		}
	}
	return valid, invalid
}

// runImport extracts every domain, continuing past per-domain failures.
func runImport(ctx context.Context, svc *service.LogoService, domains []string, concurrency int, force bool, logger *zap.Logger) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var imported, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, d := range domains {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			logo, err := svc.Extract(gctx, d, "", force)
			if err != nil {
				failed.Add(1)
				logger.Warn("extraction failed", zap.String("domain", d), zap.Error(err))
				return nil
			}
			imported.Add(1)
			logger.Info("logo stored",
				zap.String("domain", logo.Domain),
				zap.String("id", logo.ID),
				zap.String("storage", logo.StorageMode()),
			)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("import complete",
		zap.Int("total", len(domains)),
		zap.Int64("imported", imported.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return ctx.Err()
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|domain>",
		Short: "Show a stored logo without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, _ *zap.Logger) error {
				logo, err := svc.Get(ctx, args[0])
				if errors.Is(err, storage.ErrNotFound) && strings.Contains(args[0], ".") {
					logo, err = svc.GetByDomain(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(logo)
			})
		},
	}
}

func listCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored logos, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, _ *zap.Logger) error {
				logos, total, err := svc.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				for _, l := range logos {
					fmt.Printf("%s\t%s\t%s\t%s\t%d bytes\n", l.ID, l.Domain, l.Format, l.StorageMode(), l.ByteSize)
				}
				fmt.Printf("%d of %d\n", len(logos), total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", service.DefaultListLimit, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func attemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <id>",
		Short: "List the download attempts recorded for a logo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, _ *zap.Logger) error {
				attempts, err := svc.ListAttempts(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(attempts)
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var output, background string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a logo's image bytes to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, logger *zap.Logger) error {
				logo, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				data, contentType, err := svc.RetrieveImage(ctx, logo, background)
				if err != nil {
					return err
				}

				path := output
				if path == "" {
					path = logo.Domain + "." + logo.Format.Extension()
					if background != "" {
						path = logo.Domain + ".png"
					}
				}
				if err := os.WriteFile(path, data, 0644); err != nil {
					return fmt.Errorf("writing %s: %w", path, err)
				}
				logger.Info("image exported",
					zap.String("path", path),
					zap.String("content_type", contentType),
					zap.Int("bytes", len(data)),
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to <domain>.<ext>)")
	cmd.Flags().StringVar(&background, "bg", "", "Flatten onto a hex background color, producing PNG")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a logo, its attempts and its remote image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *service.LogoService, _ *zap.Logger) error {
				deleted, err := svc.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("logo %s: %w", args[0], storage.ErrNotFound)
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}
