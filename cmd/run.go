package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/paracelsus/martpipe/aws/s3"
	"github.com/paracelsus/martpipe/config"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models"
	"github.com/paracelsus/martpipe/pipeline"
	"github.com/paracelsus/martpipe/rawinput"
	"github.com/paracelsus/martpipe/rdbms"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/table"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline run and export the marts to CSV",
	Long: `Execute one full pipeline run: land the replica tables and file drops,
build the staging, intermediate and mart tables, then export the marts
as CSV files to the output directory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntimeConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.NewLogger("martpipe", cfg.LogLevel, stackDumpOnPanic)
		src, cleanup, err := newSources(log, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		store := table.NewStore()
		sm := stats.NewRunStats(log, stats.SetStatsDumpFrequency(cfg.StatsDumpFrequencySeconds))
		p := models.AddNodes(pipeline.New(log, store, sm), src)
		ri := pipeline.NewSafeMapRunInfo()
		guid, err := pipeline.LaunchRun(log, ri, p, true)
		if err != nil {
			return err
		}
		info, _ := ri.Load(guid)
		printRowCounts(info.RowCounts)
		files, err := models.ExportMarts(log, store, cfg.Output.Dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			log.Info("Exported ", f)
		}
		return nil
	},
}

var runFlags = struct {
	configFile string
	logLevel   string
	dsn        string
	localDir   string
	s3Bucket   string
	s3Prefix   string
	s3Region   string
	startDate  string
	outputDir  string
	stats      int
}{}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SortFlags = false
	switches.addFlag(runCmd, &runFlags.configFile, "config-file", "", false)
	switches.addFlag(runCmd, &runFlags.logLevel, "log-level", "", false)
	switches.addFlag(runCmd, &runFlags.dsn, "dsn", "", false)
	switches.addFlag(runCmd, &runFlags.localDir, "local-dir", "", false)
	switches.addFlag(runCmd, &runFlags.s3Bucket, "s3-bucket", "", false)
	switches.addFlag(runCmd, &runFlags.s3Prefix, "s3-prefix", "", false)
	switches.addFlag(runCmd, &runFlags.s3Region, "s3-region", "", false)
	switches.addFlag(runCmd, &runFlags.startDate, "start-date", "", false)
	switches.addFlag(runCmd, &runFlags.outputDir, "output-dir", "", false)
	switches.addFlag(runCmd, &runFlags.stats, "stats", "0", false)
}

// loadRuntimeConfig layers the config sources in priority order: built-in
// defaults, then the config file with MP_* environment overrides, then any
// flags set on the command line.
func loadRuntimeConfig(cmd *cobra.Command) (*config.Config, error) {
	path := runFlags.configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyIfChanged := func(name string, target *string, value string) {
		if cmd.Flags().Changed(name) && value != "" {
			*target = value
		}
	}
	applyIfChanged("log-level", &cfg.LogLevel, runFlags.logLevel)
	applyIfChanged("dsn", &cfg.Sources.OltpDsn, runFlags.dsn)
	applyIfChanged("local-dir", &cfg.Sources.LocalDir, runFlags.localDir)
	applyIfChanged("s3-bucket", &cfg.Sources.S3Bucket, runFlags.s3Bucket)
	applyIfChanged("s3-prefix", &cfg.Sources.S3Prefix, runFlags.s3Prefix)
	applyIfChanged("s3-region", &cfg.Sources.S3Region, runFlags.s3Region)
	applyIfChanged("start-date", &cfg.StartDate, runFlags.startDate)
	applyIfChanged("output-dir", &cfg.Output.Dir, runFlags.outputDir)
	if cmd.Flags().Changed("stats") && runFlags.stats > 0 {
		cfg.StatsDumpFrequencySeconds = runFlags.stats
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printRowCounts(rowCounts map[string]int) {
	names := make([]string, 0, len(rowCounts))
	for name := range rowCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("Tables built:")
	for _, name := range names {
		fmt.Printf("  %-40v %v rows\n", name, rowCounts[name])
	}
}

// newSources opens the run's external inputs. The returned cleanup closes
// the database connection.
func newSources(log logger.Logger, cfg *config.Config) (*models.Sources, func(), error) {
	db, err := rdbms.NewConnectionWithDsn(cfg.Sources.OltpDsn)
	if err != nil {
		return nil, nil, err
	}
	files := newOpener(cfg)
	startDate, err := cfg.StartDateTime()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	src := &models.Sources{
		Log:             log,
		Db:              db,
		Files:           files,
		ContactsCsvKey:  cfg.Sources.ContactsCsv,
		DealsCsvKey:     cfg.Sources.DealsCsv,
		ContactsJsonKey: cfg.Sources.ContactsJson,
		StartDate:       startDate,
		AsOf:            time.Now().UTC(),
	}
	return src, func() { db.Close() }, nil
}

func newOpener(cfg *config.Config) rawinput.Opener {
	if cfg.Sources.S3Bucket != "" { // if the drops live in S3...
		return s3.NewBasicClient(cfg.Sources.S3Bucket, cfg.Sources.S3Region, cfg.Sources.S3Prefix)
	}
	return rawinput.NewLocalDir(cfg.Sources.LocalDir)
}
