package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/catalogseed"
	"github.com/kailas-cloud/shopsight/internal/config"
	"github.com/kailas-cloud/shopsight/internal/db"
	dbEmbedded "github.com/kailas-cloud/shopsight/internal/db/embedded"
	dbRedis "github.com/kailas-cloud/shopsight/internal/db/redis"
	dbValkey "github.com/kailas-cloud/shopsight/internal/db/valkey"
	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/evaluation"
	logpkg "github.com/kailas-cloud/shopsight/internal/logger"
	catalogrepo "github.com/kailas-cloud/shopsight/internal/repository/catalog"
	"github.com/kailas-cloud/shopsight/internal/version"
)

func main() {
	app := newApp(afero.NewOsFs())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(fs afero.Fs) *cli.App {
	return &cli.App{
		Name:    "catalogctl",
		Usage:   "Manage and evaluate the shopsight product catalog",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Config environment (config/<env>.yaml)",
				Value:   config.GetEnv(),
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Write the demo catalog (or a JSON product file) to the store",
				Action: func(c *cli.Context) error { return seedCommand(c, fs) },
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON array of products; the demo catalog when empty",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Write even when the catalog already has products",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent write batches",
						Value: 4,
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Drop and recreate the catalog search index",
				Action: indexCommand,
			},
			{
				Name:   "list",
				Usage:  "List catalog products, optionally filtered",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "Exact category"},
					&cli.StringFlag{Name: "type", Usage: "Exact product type"},
					&cli.StringSliceFlag{Name: "exclude-type", Usage: "Product types to leave out"},
					&cli.Float64Flag{Name: "min-price", Usage: "Inclusive lower price bound"},
					&cli.Float64Flag{Name: "max-price", Usage: "Inclusive upper price bound"},
					&cli.IntFlag{Name: "offset", Usage: "Matches to skip"},
					&cli.IntFlag{Name: "limit", Usage: "Page size", Value: 20},
				},
			},
			{
				Name:   "get",
				Usage:  "Print one product as JSON",
				Action: getCommand,
				Flags:  productRefFlags(),
			},
			{
				Name:   "delete",
				Usage:  "Remove one product from the catalog",
				Action: deleteCommand,
				Flags:  productRefFlags(),
			},
			{
				Name:   "evaluate",
				Usage:  "Run a golden set against the search API and report Hit@K and MRR",
				Action: func(c *cli.Context) error { return evaluateCommand(c, fs) },
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "golden",
						Aliases:  []string{"g"},
						Usage:    "Golden set JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "api",
						Usage:   "Search endpoint",
						Value:   "http://localhost:3000/api/search/image",
						EnvVars: []string{"API_URL"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent requests",
						Value: 4,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Per-request timeout",
						Value: 60 * time.Second,
					},
				},
			},
		},
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logpkg.NewLogger(logpkg.EnvCLI, c.String("log-level"))
}

// openCatalog loads the boot config and connects the catalog repository.
func openCatalog(ctx context.Context, c *cli.Context, logger *zap.Logger) (*catalogrepo.Repo, func(), error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var store db.Store
	switch cfg.Database.Driver {
	case config.DriverRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Database.Addrs, Password: cfg.Database.Password})
	case config.DriverValkey:
		store, err = dbValkey.NewStore(dbValkey.Config{Addrs: cfg.Database.Addrs, Password: cfg.Database.Password})
	case config.DriverEmbedded:
		if cfg.Database.Path == "" {
			return nil, nil, fmt.Errorf("embedded driver needs database.path to persist a seeded catalog")
		}
		store, err = dbEmbedded.NewStore(dbEmbedded.Config{Path: cfg.Database.Path, Logger: logger})
	default:
		err = fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	repo := catalogrepo.New(store, catalogrepo.Config{
		KeyPrefix: cfg.Catalog.KeyPrefix,
		PoolSize:  cfg.Catalog.PoolSize,
		Language:  cfg.Catalog.Language,
	})
	return repo, store.Close, nil
}

func seedCommand(c *cli.Context, fs afero.Fs) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	products := catalogseed.Demo()
	if file := c.String("file"); file != "" {
		products, err = catalogseed.LoadFile(fs, file)
		if err != nil {
			return err
		}
	}

	repo, closeStore, err := openCatalog(c.Context, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := catalogseed.NewSeeder(repo, c.Int("workers"), logger).Seed(c.Context, products, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if res.Skipped {
		fmt.Fprintf(c.App.Writer, "catalog already has %d products, nothing written (use --force)\n", res.Existing)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "wrote %d products (index created: %t)\n", res.Written, res.IndexCreated)
	return nil
}

func indexCommand(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	repo, closeStore, err := openCatalog(c.Context, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := repo.RebuildIndex(c.Context); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "catalog index rebuilt")
	return nil
}

func productRefFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Product id"},
		&cli.StringFlag{Name: "title", Usage: "Product title, case-insensitive"},
	}
}

// productRef reads --id/--title; exactly one is required.
func productRef(c *cli.Context) (id, title string, err error) {
	id, title = strings.TrimSpace(c.String("id")), strings.TrimSpace(c.String("title"))
	if (id == "") == (title == "") {
		return "", "", fmt.Errorf("exactly one of --id or --title is required")
	}
	return id, title, nil
}

// productFinder is the lookup surface of the catalog used by get and delete.
type productFinder interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindByTitle(ctx context.Context, title string) (domain.Product, error)
}

func resolveProduct(ctx context.Context, repo productFinder, id, title string) (domain.Product, error) {
	var (
		p   domain.Product
		err error
	)
	if id != "" {
		p, err = repo.FindByID(ctx, id)
	} else {
		p, err = repo.FindByTitle(ctx, title)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("product %s not found", firstNonEmpty(id, strconv.Quote(title)))
	}
	return p, err
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func listFilter(c *cli.Context) catalogrepo.ListFilter {
	f := catalogrepo.ListFilter{
		Category:     c.String("category"),
		Type:         c.String("type"),
		ExcludeTypes: c.StringSlice("exclude-type"),
		Offset:       c.Int("offset"),
		Limit:        c.Int("limit"),
	}
	if c.IsSet("min-price") {
		v := c.Float64("min-price")
		f.MinPrice = &v
	}
	if c.IsSet("max-price") {
		v := c.Float64("max-price")
		f.MaxPrice = &v
	}
	return f
}

func writeListing(w io.Writer, products []domain.Product, offset, total int) {
	for _, p := range products {
		fmt.Fprintf(w, "%-36s  %-40s  %-16s  %-12s  %10.2f\n", p.ID, p.Title, p.Category, p.Type, p.Price)
	}
	fmt.Fprintf(w, "showing %d-%d of %d\n", min(offset+1, total), offset+len(products), total)
}

func listCommand(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	repo, closeStore, err := openCatalog(c.Context, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	f := listFilter(c)
	products, total, err := repo.List(c.Context, f)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	writeListing(c.App.Writer, products, max(f.Offset, 0), total)
	return nil
}

func getCommand(c *cli.Context) error {
	id, title, err := productRef(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	repo, closeStore, err := openCatalog(c.Context, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := resolveProduct(c.Context, repo, id, title)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func deleteCommand(c *cli.Context) error {
	id, title, err := productRef(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	repo, closeStore, err := openCatalog(c.Context, c, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := resolveProduct(c.Context, repo, id, title)
	if err != nil {
		return err
	}
	if err := repo.Delete(c.Context, p.ID); err != nil {
		return fmt.Errorf("delete %s: %w", p.ID, err)
	}
	fmt.Fprintf(c.App.Writer, "deleted %s (%s)\n", p.ID, p.Title)
	return nil
}

func evaluateCommand(c *cli.Context, fs afero.Fs) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	golden := c.String("golden")
	cases, err := evaluation.LoadGoldenSet(fs, golden)
	if err != nil {
		return err
	}

	runner := evaluation.NewRunner(fs, evaluation.RunnerConfig{
		Endpoint: c.String("api"),
		BaseDir:  filepath.Dir(golden),
		Workers:  c.Int("workers"),
		Timeout:  c.Duration("timeout"),
		Logger:   logger,
	})

	outcomes, err := runner.Run(c.Context, cases)
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		status := "not found"
		switch {
		case o.Skipped:
			status = "SKIP: image missing"
		case o.Err != nil:
			status = "ERROR: " + o.Err.Error()
		case o.Rank > 0:
			status = fmt.Sprintf("rank %d (%dms)", o.Rank, o.DurationMs)
		}
		fmt.Fprintf(c.App.Writer, "%-40s %s\n", o.Case.Label, status)
	}

	report := evaluation.Summarize(outcomes)
	if report.Total == 0 {
		return fmt.Errorf("no successful cases recorded")
	}
	return report.Write(c.App.Writer)
}
