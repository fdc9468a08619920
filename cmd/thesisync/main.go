package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/epfllibrary/thesisync/pkg/alma"
	"github.com/epfllibrary/thesisync/pkg/analytics"
	"github.com/epfllibrary/thesisync/pkg/callnum"
	"github.com/epfllibrary/thesisync/pkg/config"
	"github.com/epfllibrary/thesisync/pkg/infoscience"
	"github.com/epfllibrary/thesisync/pkg/pipeline"
	"github.com/epfllibrary/thesisync/pkg/sru"
	"github.com/epfllibrary/thesisync/pkg/syncer"
	util_log "github.com/epfllibrary/thesisync/pkg/util/log"
	"github.com/epfllibrary/thesisync/pkg/xsdcheck"
)

var version = "dev"

const (
	errorLogFile   = "errors.log"
	reportDir      = "reports"
	callNumberFile = "last_call_number.txt"
)

type runOptions struct {
	dryRun       bool
	useStaticURL bool
	spcPage      int
	spcRpp       int
	env          string
	institution  string
	noXSDCheck   bool
	skipSRUCheck bool
	maxRecords   int
	configFile   string
	logLevel     string
	logFormat    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "thesisync",
		Short:         "Create catalog records for new theses exported from Infoscience",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one synchronization pass",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.dryRun, "dry-run", false, "validate and report only, create nothing in the catalog")
	f.BoolVar(&opts.useStaticURL, "use-static-url", false, "use the static test export instead of paginated export")
	f.IntVar(&opts.spcPage, "spc-page", 1, "first export page to fetch")
	f.IntVar(&opts.spcRpp, "spc-rpp", -1, "results per export page, taken from config when omitted")
	f.StringVar(&opts.env, "env", "", "catalog environment, S (sandbox) or P (production), taken from config when omitted")
	f.StringVar(&opts.institution, "institution-code", "", "institution zone code, taken from config when omitted")
	f.BoolVar(&opts.noXSDCheck, "no-xsd-check", false, "disable XSD validation of bib, holding and item elements")
	f.BoolVar(&opts.skipSRUCheck, "skip-sru-check", false, "skip the union catalog duplicate check")
	f.IntVar(&opts.maxRecords, "max-records", 0, "maximum records to process, 0 means all")
	f.StringVar(&opts.configFile, "config-file", "", "INI configuration file")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", "logfmt", "log format: logfmt or json")

	return cmd
}

func run(opts *runOptions) error {
	// .env is optional, the environment itself may carry the keys
	_ = godotenv.Load()

	logger, closeLogs, err := util_log.InitLogger(util_log.Config{
		LogLevel:  opts.logLevel,
		LogFormat: opts.logFormat,
		ErrorFile: errorLogFile,
	})
	if err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer closeLogs()

	logger = util_log.WithSuppression(logger, "no holding found")
	logger = log.With(logger, "run_id", uuid.NewString())

	level.Info(logger).Log("msg", "starting run", "version", version,
		"dry_run", opts.dryRun, "use_static_url", opts.useStaticURL,
		"spc_page", opts.spcPage, "spc_rpp", opts.spcRpp,
		"max_records", opts.maxRecords, "config_file", opts.configFile)

	cfg := config.Load(opts.configFile, logger)

	env := opts.env
	if env == "" {
		env = cfg.General.Env
	}
	if env != "S" && env != "P" {
		return errors.Errorf("invalid env %q, want S or P", env)
	}
	institution := opts.institution
	if institution == "" {
		institution = cfg.General.InstitutionCode
	}
	checkXSD := !opts.noXSDCheck && cfg.General.CheckXSD
	skipSRUCheck := opts.skipSRUCheck || cfg.General.SkipSRUCheck
	pageSize := opts.spcRpp
	if pageSize <= 0 {
		pageSize = cfg.Infoscience.SpcRpp
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The run cannot start without a seeded call number.
	analyticsCfg, err := analytics.ConfigFromEnv()
	if err != nil {
		return errors.Wrap(err, "analytics configuration")
	}
	alloc, err := callnum.NewFromSource(ctx, cfg.Holding.CallNumberPrefix, analytics.NewClient(analyticsCfg))
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "call number seeded", "value", alloc.Value())

	almaCfg, err := alma.ConfigFromEnv(env, institution)
	if err != nil {
		return errors.Wrap(err, "catalog configuration")
	}
	almaCfg.Timeout = 30 * time.Second
	almaCfg.RetryMax = 3

	schemas := xsdcheck.LoadSet(xsdcheck.Paths{
		MARC21:  cfg.XSD.MARC21,
		Bib:     cfg.XSD.Bib,
		Holding: cfg.XSD.Holding,
		Item:    cfg.XSD.Item,
	}, checkXSD, logger)
	defer schemas.Free()

	exportClient := infoscience.NewClient(infoscience.Config{
		PageSize:      pageSize,
		Format:        cfg.Infoscience.OfFormat,
		SinceStrategy: cfg.Infoscience.SinceStrategy,
		Timeout:       30 * time.Second,
		RetryMax:      5,
	}, logger)
	source := infoscience.NewStream(exportClient, opts.spcPage, opts.useStaticURL, logger)

	dedup := sru.NewClient(sru.Config{
		Institution: institution,
		Timeout:     30 * time.Second,
		RetryMax:    3,
	}, logger)

	sync := syncer.New(syncer.Config{
		Library:        cfg.Holding.LibraryCode,
		Locations:      cfg.Holding.Locations,
		PoLine:         cfg.Item.PoLine,
		DepartmentCode: cfg.Item.DepartmentCode,
		MaterialType:   cfg.Item.MaterialTypeCode,
	}, alma.NewClient(almaCfg, logger), schemas, logger)

	p := pipeline.New(pipeline.Options{
		DryRun:         opts.dryRun,
		SkipSRUCheck:   skipSRUCheck,
		MaxRecords:     opts.maxRecords,
		ReportDir:      reportDir,
		ReportPrefix:   cfg.General.ReportPrefix,
		XLSXReport:     cfg.General.XLSXReport,
		CallNumberPath: callNumberFile,
	}, source, dedup, sync, alloc, logger)

	agg, err := p.Run(ctx)
	if err != nil {
		return err
	}

	level.Info(logger).Log("msg", "run finished", "records", agg.Len(), "last_call_number", alloc.Value())
	return nil
}
