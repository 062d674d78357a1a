package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/nocometa/internal/adapters/cache/lru"
	sqliteadapter "github.com/atvirokodosprendimai/nocometa/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/nocometa/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/nocometa/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/atvirokodosprendimai/nocometa/internal/metrics"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAddr   = ":8080"
	defaultSocket = "/tmp/nocometa.sock"
	defaultDSN    = "nocometa.db"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "nocometa",
		Usage: "Table, column and view metadata server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			migrateCommand(),
			configCommand(),
			tablesCommand(),
			columnsCommand(),
			viewsCommand(),
			exportCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "db-driver", Value: sqliteadapter.DriverSQLite, Usage: "metadata database driver (sqlite or postgres)", Sources: cli.EnvVars("NOCOMETA_DB_DRIVER")},
		&cli.StringFlag{Name: "dsn", Value: defaultDSN, Usage: "sqlite path or postgres DSN", Sources: cli.EnvVars("NOCOMETA_DSN")},
	}
}

func serverCommand() *cli.Command {
	flags := append(storeFlags(),
		&cli.StringFlag{Name: "addr", Value: defaultAddr, Usage: "HTTP listen address", Sources: cli.EnvVars("NOCOMETA_ADDR")},
		&cli.StringFlag{Name: "rpc-socket", Value: defaultSocket, Usage: "JSON-RPC unix socket path", Sources: cli.EnvVars("NOCOMETA_RPC_SOCKET")},
		&cli.IntFlag{Name: "cache-size", Value: lru.DefaultSize, Usage: "metadata cache entries", Sources: cli.EnvVars("NOCOMETA_CACHE_SIZE")},
		&cli.IntFlag{Name: "formula-queue", Value: 256, Usage: "formula invalidation queue size"},
	)
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP and JSON-RPC servers",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, serverConfig{
				driver:       c.String("db-driver"),
				dsn:          c.String("dsn"),
				addr:         c.String("addr"),
				rpcSocket:    c.String("rpc-socket"),
				cacheSize:    int(c.Int("cache-size")),
				formulaQueue: int(c.Int("formula-queue")),
			})
		},
	}
}

type serverConfig struct {
	driver       string
	dsn          string
	addr         string
	rpcSocket    string
	cacheSize    int
	formulaQueue int
}

func runServer(ctx context.Context, cfg serverConfig) error {
	db, err := sqliteadapter.OpenDriver(cfg.driver, cfg.dsn)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	recorder := metrics.Recorder{}
	cache, err := lru.New(cfg.cacheSize, lru.WithObserver(recorder))
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "nocometa ", log.LstdFlags)
	service := application.NewMetaService(sqliteadapter.NewMetaStore(db), cache,
		application.WithLogger(logger),
		application.WithObserver(recorder),
		application.WithFormulaQueueSize(cfg.formulaQueue),
	)
	defer func() { _ = service.Close() }()

	router := httpadapter.NewRouter(service, metrics.Registry)
	srv := &http.Server{Addr: cfg.addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(cfg.rpcSocket, service)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("json-rpc listening on unix://%s", cfg.rpcSocket)
		return rpcSrv.Serve()
	})
	g.Go(func() error {
		log.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = rpcSrv.Close()
		err := srv.Shutdown(shutdownCtx)
		_ = service.Close()
		return err
	})
	return g.Wait()
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply metadata schema migrations",
		Flags: storeFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := sqliteadapter.OpenDriver(c.String("db-driver"), c.String("dsn"))
			if err != nil {
				return err
			}
			if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
				return err
			}
			current, latest, err := sqliteadapter.SchemaVersion(ctx, db)
			if err != nil {
				return err
			}
			printSuccess("migrations applied")
			printKV([][2]string{{"schema version", strconv.FormatInt(current, 10)}, {"latest", strconv.FormatInt(latest, 10)}})
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Store CLI transport settings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Value: transportSocket, Usage: "uds or http"},
			&cli.StringFlag{Name: "server", Value: defaultServer},
			&cli.StringFlag{Name: "socket", Value: defaultSocket},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
			if err := saveConfig(cfg); err != nil {
				return err
			}
			printSuccess("saved " + cfg.Transport + " transport")
			return nil
		},
	}
}

func tablesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tables",
		Usage: "Table commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tables of a base",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Model
					if err := doTablesList(ctx, cfg, c.String("base"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printModels(out)
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "Show a table with its columns and views",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Model
					if err := doTablesGet(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printModel(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a table with a default grid view",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "table-name"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					tableName := c.String("table-name")
					if tableName == "" {
						tableName = c.String("title")
					}
					var out domain.Model
					if err := doTablesCreate(ctx, cfg, c.String("base"), c.String("title"), tableName, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printModel(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a table with its columns and views",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "force", Usage: "also drop relation columns of other tables pointing here"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doTablesDelete(ctx, cfg, c.String("id"), c.Bool("force")); err != nil {
						return err
					}
					printSuccess("deleted table " + c.String("id"))
					return nil
				},
			},
		},
	}
}

func columnsCommand() *cli.Command {
	return &cli.Command{
		Name:  "columns",
		Usage: "Column commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List columns of a table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "table", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Column
					if err := doColumnsList(ctx, cfg, c.String("table"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printColumns(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Add a column to a table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "table", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "uidt", Value: string(domain.UISingleLineText)},
					&cli.StringFlag{Name: "column-name"},
					&cli.StringFlag{Name: "options", Usage: "comma separated select options"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					in := map[string]any{
						"title":       c.String("title"),
						"uidt":        c.String("uidt"),
						"column_name": c.String("column-name"),
					}
					if opts := c.String("options"); opts != "" {
						in["dtxp"] = opts
					}
					var out domain.Column
					if err := doColumnsCreate(ctx, cfg, c.String("table"), in, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printColumns([]domain.Column{out})
					return nil
				},
			},
			{
				Name:  "deps",
				Usage: "Show columns that would be affected by deleting a column",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []application.Dependency
					if err := doColumnsDeps(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDependencies(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a column and everything depending on it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doColumnsDelete(ctx, cfg, c.String("id")); err != nil {
						return err
					}
					printSuccess("deleted column " + c.String("id"))
					return nil
				},
			},
		},
	}
}

func viewsCommand() *cli.Command {
	return &cli.Command{
		Name:  "views",
		Usage: "View commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List views of a table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "table", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.View
					if err := doViewsList(ctx, cfg, c.String("table"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printViews(out)
					return nil
				},
			},
			{
				Name:  "columns",
				Usage: "List the column projection of a view",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.ViewColumn
					if err := doViewColumns(ctx, cfg, c.String("id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printViewColumns(out)
					return nil
				},
			},
			{
				Name:  "show-all",
				Usage: "Show every column of a view",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringSliceFlag{Name: "ignore", Usage: "column ids to leave untouched"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doViewsVisibility(ctx, cfg, c.String("id"), true, c.StringSlice("ignore")); err != nil {
						return err
					}
					printSuccess("all columns shown")
					return nil
				},
			},
			{
				Name:  "hide-all",
				Usage: "Hide every column of a view except pinned ones",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringSliceFlag{Name: "ignore", Usage: "column ids to leave untouched"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doViewsVisibility(ctx, cfg, c.String("id"), false, c.StringSlice("ignore")); err != nil {
						return err
					}
					printSuccess("all columns hidden")
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete a view",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doViewsDelete(ctx, cfg, c.String("id")); err != nil {
						return err
					}
					printSuccess("deleted view " + c.String("id"))
					return nil
				},
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export table metadata as YAML or JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Usage: "export every table of the base"},
			&cli.StringSliceFlag{Name: "table", Usage: "table ids to export"},
			&cli.StringFlag{Name: "format", Value: "yaml", Usage: "yaml or json"},
			&cli.StringFlag{Name: "out", Usage: "output file, stdout when empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.String("base") == "" && len(c.StringSlice("table")) == 0 {
				return errors.New("either --base or --table is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out []application.ModelSnapshot
			if err := doExport(ctx, cfg, c.String("base"), c.StringSlice("table"), &out); err != nil {
				return err
			}
			return writeSnapshot(out, c.String("format"), c.String("out"))
		},
	}
}
