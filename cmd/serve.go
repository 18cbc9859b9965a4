package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models"
	"github.com/paracelsus/martpipe/pipeline"
	"github.com/paracelsus/martpipe/server"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/table"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service to launch pipeline runs and query the marts",
	Long: `Start a web service to launch pipeline runs and query the marts.
Runs launched over HTTP share one table store, so the mart endpoints
always serve the latest fully committed tables`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntimeConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("address") {
			cfg.Server.Addr = serveFlags.addr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serveFlags.port
		}
		log := logger.NewLogger("martpipe", cfg.LogLevel, stackDumpOnPanic)
		store := table.NewStore()
		src, cleanup, err := newSources(log, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		newPipeline := func() (*pipeline.Pipeline, error) {
			s := *src
			s.AsOf = time.Now().UTC() // each launch gets a fresh as-of day.
			sm := stats.NewRunStats(log, stats.SetStatsDumpFrequency(cfg.StatsDumpFrequencySeconds))
			return models.AddNodes(pipeline.New(log, store, sm), &s), nil
		}
		return server.RunWebServer(&server.WebServerConfig{
			Log:         log,
			Addr:        cfg.Server.Addr,
			Port:        cfg.Server.Port,
			Store:       store,
			NewPipeline: newPipeline,
		})
	},
}

var serveFlags = struct {
	addr string
	port int
}{}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	switches.addFlag(serveCmd, &runFlags.configFile, "config-file", "", false)
	switches.addFlag(serveCmd, &runFlags.logLevel, "log-level", "", false)
	switches.addFlag(serveCmd, &runFlags.dsn, "dsn", "", false)
	switches.addFlag(serveCmd, &runFlags.localDir, "local-dir", "", false)
	switches.addFlag(serveCmd, &runFlags.s3Bucket, "s3-bucket", "", false)
	switches.addFlag(serveCmd, &serveFlags.addr, "address", "", false)
	switches.addFlag(serveCmd, &serveFlags.port, "port", "0", false)
	switches.addFlag(serveCmd, &runFlags.stats, "stats", "0", false)
}
