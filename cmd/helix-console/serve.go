package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudbro-kube-ai/helix-console/pkg/config"
	"github.com/cloudbro-kube-ai/helix-console/pkg/db"
	"github.com/cloudbro-kube-ai/helix-console/pkg/helix"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/web"
)

type serveOptions struct {
	configPath    string
	port          int
	helixEndpoint string
	dbPath        string
	noDB          bool
	logLevel      string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Config file (default: "+config.GetConfigPath()+")")
	f.IntVar(&opts.port, "port", 0, "Web server port (overrides web.port)")
	f.StringVar(&opts.helixEndpoint, "helix-endpoint", "", "helix-rest base URL, e.g. http://localhost:8100")
	f.StringVar(&opts.dbPath, "db-path", "", "SQLite audit database path (default: "+config.DefaultDBPath()+")")
	f.BoolVar(&opts.noDB, "no-db", false, "Disable the audit database")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	return cmd
}

// loadConfig layers file, environment and flags, in that order.
func (o *serveOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Web.Port = o.port
	}
	if o.helixEndpoint != "" {
		cfg.Helix.Endpoint = o.helixEndpoint
	}
	if o.dbPath != "" {
		cfg.Storage.DBPath = o.dbPath
	}
	if o.noDB {
		cfg.EnableAudit = false
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServer(cfg *config.Config) error {
	if err := log.Init("helix-console", cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize log file: %v\n", err)
	}
	defer log.Close()

	log.Infof("Starting helix-console %s (commit %s)", Version, GitCommit)

	var serverOpts []web.Option
	if cfg.EnableAudit {
		stop := initAudit(cfg)
		defer stop()
		serverOpts = append(serverOpts, web.WithAuditFunc(db.RecordAudit))
	}

	client, err := helix.NewClient(cfg.Helix, cfg.HelixTimeout())
	if err != nil {
		return fmt.Errorf("create helix client: %w", err)
	}

	versionInfo := &web.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
	server, err := web.NewServer(cfg, client, versionInfo, serverOpts...)
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start()
		close(serverErrCh)
	}()

	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
		if err := server.Stop(); err != nil {
			log.Errorf("Error stopping web server: %v", err)
		}
		fmt.Println("Shutdown complete.")
		return nil
	case err := <-serverErrCh:
		_ = server.Stop()
		if err != nil {
			log.Errorf("Web server error: %v", err)
			return fmt.Errorf("web server stopped: %w", err)
		}
		return nil
	}
}

// initAudit opens the audit database, the optional audit file and the
// retention job. Failures are logged; the console runs without them.
func initAudit(cfg *config.Config) (stop func()) {
	var stops []func()

	dbCfg := db.DBConfig{
		Type:     db.DBType(cfg.Storage.DBType),
		Path:     cfg.GetEffectiveDBPath(),
		Host:     cfg.Storage.DBHost,
		Port:     cfg.Storage.DBPort,
		Database: cfg.Storage.DBName,
		Username: cfg.Storage.DBUser,
		Password: cfg.Storage.DBPassword,
		SSLMode:  cfg.Storage.DBSSLMode,
	}
	if err := db.InitWithConfig(dbCfg); err != nil {
		log.Errorf("Failed to initialize audit database: %v", err)
	} else {
		stops = append(stops, func() { _ = db.Close() })

		if cfg.Storage.AuditRetentionDays > 0 {
			retention, err := db.NewRetention(cfg.Storage.AuditRetentionDays, cfg.Storage.RetentionSchedule)
			if err != nil {
				log.Errorf("Audit retention disabled: %v", err)
			} else if err := retention.Start(); err != nil {
				log.Errorf("Audit retention disabled: %v", err)
			} else {
				stops = append(stops, retention.Stop)
			}
		}
	}

	if cfg.Storage.EnableAuditFile {
		if err := db.InitAuditFile(cfg.GetEffectiveAuditFilePath()); err != nil {
			log.Errorf("Failed to initialize audit file: %v", err)
		} else {
			stops = append(stops, db.CloseAuditFile)
		}
	}

	return func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
}
