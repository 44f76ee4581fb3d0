// Package servecmder provides the serve command that runs the API + MCP server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/contextpack"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/eventstream"
	kafkastream "github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/extract/llm"
	"github.com/papercomputeco/recall/pkg/impact"
	"github.com/papercomputeco/recall/pkg/ingest"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/search"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
	"github.com/papercomputeco/recall/pkg/store/postgres"
	"github.com/papercomputeco/recall/pkg/store/sqlite"
	"github.com/papercomputeco/recall/pkg/track"
)

const sqliteFile = "recall.db"

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l",
		ViperKey:    "api.listen",
		Description: "Address for the API + MCP server to listen on",
	},
	config.FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Graph store backend (sqlite, postgres, inmemory)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database (default: recall.db in the .recall/ dir)",
	},
	config.FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_url",
		Description: "PostgreSQL connection URL (required for the postgres driver)",
	},
	config.FlagExtractorProvider: {
		Name:        "extractor-provider",
		ViperKey:    "extractor.provider",
		Description: "Entity extractor provider (openai, anthropic, ollama, none)",
	},
	config.FlagExtractorModel: {
		Name:        "extractor-model",
		ViperKey:    "extractor.model",
		Description: "Entity extractor model name",
	},
	config.FlagExtractorTarget: {
		Name:        "extractor-target",
		ViperKey:    "extractor.target",
		Description: "Entity extractor base URL",
	},
	config.FlagExtractorTimeout: {
		Name:        "extractor-timeout",
		ViperKey:    "extractor.timeout_seconds",
		Description: "Entity extractor per-call timeout in seconds",
	},
	config.FlagEventStreamProv: {
		Name:        "eventstream-provider",
		ViperKey:    "eventstream.provider",
		Description: "Ingest event publisher (nop, kafka)",
	},
	config.FlagEventStreamBrokers: {
		Name:        "eventstream-brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventStreamTopic: {
		Name:        "eventstream-topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for ingest events",
	},
	config.FlagPackMaxNodes: {
		Name:        "pack-max-nodes",
		ViperKey:    "pack.max_nodes",
		Description: "Hard node budget for one context pack",
	},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagExtractorProvider,
	config.FlagExtractorModel,
	config.FlagExtractorTarget,
	config.FlagExtractorTimeout,
	config.FlagEventStreamProv,
	config.FlagEventStreamBrokers,
	config.FlagEventStreamTopic,
	config.FlagPackMaxNodes,
}

type ServeCommander struct {
	listen           string
	storageDriver    string
	sqlitePath       string
	postgresURL      string
	extractorProv    string
	extractorModel   string
	extractorTarget  string
	extractorTimeout uint
	streamProvider   string
	streamBrokers    string
	streamTopic      string
	packMaxNodes     uint

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *zap.Logger
}

const serveLongDesc string = `Run the recall server.

Serves the REST API and mounts the MCP server at /mcp on the same
listener. Agents connect over MCP; everything the tools can do is
also reachable via the REST API.`

const serveShortDesc string = "Run the recall API + MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error

			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, serveFlags, serveFlagKeys)

			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgres, &cmder.postgresURL)
	config.AddStringFlag(cmd, serveFlags, config.FlagExtractorProvider, &cmder.extractorProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagExtractorModel, &cmder.extractorModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagExtractorTarget, &cmder.extractorTarget)
	config.AddUintFlag(cmd, serveFlags, config.FlagExtractorTimeout, &cmder.extractorTimeout)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamProv, &cmder.streamProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamBrokers, &cmder.streamBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamTopic, &cmder.streamTopic)
	config.AddUintFlag(cmd, serveFlags, config.FlagPackMaxNodes, &cmder.packMaxNodes)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v := c.viper

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver, err := c.createDriver(ctx, v)
	if err != nil {
		return err
	}
	defer driver.Close()

	extractor, err := c.createExtractor(v)
	if err != nil {
		return err
	}

	publisher, err := c.createPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	pipeline := ingest.NewPipeline(driver, extractor, c.logger,
		ingest.WithExtractTimeout(time.Duration(v.GetUint("extractor.timeout_seconds"))*time.Second),
		ingest.WithPublisher(publisher),
	)
	packs := contextpack.NewBuilder(driver, c.logger, int(v.GetUint("pack.max_nodes")))
	analyzer := impact.NewAnalyzer(driver, c.logger)
	searcher := search.NewService(driver, c.logger)
	tracker := track.NewTracker(driver, analyzer, c.logger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Pipeline: pipeline,
		Packs:    packs,
		Searcher: searcher,
		Tracker:  tracker,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, pipeline, packs, analyzer, searcher, tracker, c.logger)
	apiServer.MountMCP(mcpServer.Handler())

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createDriver(ctx context.Context, v *viper.Viper) (store.Driver, error) {
	switch v.GetString("storage.driver") {
	case "sqlite":
		path := v.GetString("storage.sqlite_path")
		if path == "" {
			target, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
			path = filepath.Join(target, sqliteFile)
		}

		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil

	case "postgres":
		url := v.GetString("storage.postgres_url")
		if url == "" {
			return nil, fmt.Errorf("storage.postgres_url is required for the postgres driver")
		}

		driver, err := postgres.NewDriver(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (available: sqlite, postgres, inmemory)", v.GetString("storage.driver"))
	}
}

// createExtractor returns a nil interface when the extractor is disabled so
// the pipeline's nil check holds.
func (c *ServeCommander) createExtractor(v *viper.Viper) (extract.Extractor, error) {
	provider := v.GetString("extractor.provider")
	if provider == "none" {
		c.logger.Warn("extractor disabled, ingests will record interactions only")
		return nil, nil
	}

	extractor, err := llm.NewExtractor(llm.Config{
		Provider: provider,
		Model:    v.GetString("extractor.model"),
		APIKey:   v.GetString("extractor.api_key"),
		Target:   v.GetString("extractor.target"),
		Timeout:  time.Duration(v.GetUint("extractor.timeout_seconds")) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}

	c.logger.Info("using LLM extractor",
		zap.String("provider", provider),
		zap.String("model", v.GetString("extractor.model")),
	)
	return extractor, nil
}

func (c *ServeCommander) createPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch v.GetString("eventstream.provider") {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := strings.Split(v.GetString("eventstream.brokers"), ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}

		publisher, err := kafkastream.NewPublisher(brokers, v.GetString("eventstream.topic"))
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}

		c.logger.Info("publishing ingest events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", v.GetString("eventstream.topic")),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown eventstream provider: %q (available: nop, kafka)", v.GetString("eventstream.provider"))
	}
}
