package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/airbusgeo/georotate/cmd"
	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/airbusgeo/georotate/interface/messaging/pgqueue"
	"github.com/airbusgeo/georotate/interface/messaging/pubsub"
	"github.com/airbusgeo/georotate/internal/image"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/raster"
	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/airbusgeo/georotate/internal/worker"
	"go.uber.org/zap"
)

const usage = `usage: georotate <transform|resample> -in INPUT [-out OUTPUT] [-theta DEGREES] [options]
       georotate worker -jobsQueue QUEUE (-psProject PROJECT | -pgqConnection DSN) [options]

  transform  rotates the geotransform only (default theta: 90)
  resample   rotates the pixels on an expanded canvas (default theta: 15)
  worker     runs the rotation jobs (JSON) received from a queue
`

func main() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	runerr := make(chan error)

	go func() {
		runerr <- run(ctx, os.Args[1:])
	}()

	for {
		select {
		case err := <-runerr:
			if err != nil {
				log.Logger(ctx).Error("exit on error", zap.Error(err))
				log.Sync()
				os.Exit(exitCode(err))
			}
			log.Logger(ctx).Info("exiting")
			log.Sync()
			return
		case <-quit:
			cancel()
			go func() {
				time.Sleep(30 * time.Second)
				runerr <- fmt.Errorf("did not terminate after 30 seconds")
			}()
		}
	}
}

// exitCode maps the raster errors to distinct exit codes
func exitCode(err error) int {
	switch {
	case raster.IsError(err, raster.InputNotFound):
		return 2
	case raster.IsError(err, raster.InvalidGeometry):
		return 3
	case raster.IsError(err, raster.UnsupportedPixelType):
		return 4
	case raster.IsError(err, raster.BandIOFailure):
		return 5
	}
	return 1
}

func run(ctx context.Context, args []string) error {
	appConfig, err := newAppConfig(args)
	if err != nil {
		return err
	}
	if appConfig.Console {
		log.Console()
	}

	if err := cmd.InitGDAL(ctx, appConfig.GDALConfig); err != nil {
		return fmt.Errorf("init gdal: %w", err)
	}
	defer cmd.LogStorageMetrics(ctx, appConfig.GDALConfig)

	ctx = log.With(ctx, "mode", appConfig.Mode)
	switch appConfig.Mode {
	case rotate.ModeTransform:
		return newHandler(appConfig.WorkDir)(appConfig.Cog, appConfig.CreationParams).Transform(ctx, appConfig.Rotation)
	case rotate.ModeResample:
		return newHandler(appConfig.WorkDir)(appConfig.Cog, appConfig.CreationParams).Resample(ctx, appConfig.Rotation)
	default:
		return runWorker(ctx, appConfig)
	}
}

func newHandler(workDir string) worker.HandlerFactory {
	return func(cogOutput bool, creationParams []string) image.Handler {
		var cog image.CogGenerator
		if cogOutput {
			cog = image.NewCogGenerator()
		}
		return image.NewHandleRotation(cog, workDir, creationParams)
	}
}

func runWorker(ctx context.Context, appConfig *appConfig) error {
	var consumer messaging.Consumer
	var publisher messaging.Publisher
	var logMessaging string
	switch {
	case appConfig.PgqConnection != "":
		db, err := pgqueue.SqlConnect(ctx, appConfig.PgqConnection)
		if err != nil {
			return err
		}
		defer db.Close()
		logMessaging = fmt.Sprintf("pulling on pgqueue %s", appConfig.JobsQueue)
		c := pgqueue.NewConsumer(db, appConfig.JobsQueue)
		go func() {
			<-ctx.Done()
			c.Stop()
		}()
		consumer = c
		if appConfig.EventsQueue != "" {
			logMessaging += fmt.Sprintf(", pushing on pgqueue %s", appConfig.EventsQueue)
			publisher = pgqueue.NewPublisher(db, appConfig.EventsQueue, pgqueue.WithMaxRetries(3))
		}
	default:
		logMessaging = fmt.Sprintf("pulling on %s/%s", appConfig.PsProject, appConfig.JobsQueue)
		consumer = pubsub.NewConsumer(nil, appConfig.PsProject, appConfig.JobsQueue, pubsub.OnErrorRetryDelay(60*time.Second))
		if appConfig.EventsQueue != "" {
			logMessaging += fmt.Sprintf(", pushing on %s/%s", appConfig.PsProject, appConfig.EventsQueue)
			p, err := pubsub.NewPublisher(ctx, appConfig.PsProject, appConfig.EventsQueue, pubsub.WithMaxRetries(3))
			if err != nil {
				return fmt.Errorf("pubsub.newpublisher: %w", err)
			}
			defer p.Stop()
			publisher = p
		}
	}

	log.Logger(ctx).Sugar().Infof("worker starts %s", logMessaging)
	return worker.New(newHandler(appConfig.WorkDir), publisher, appConfig.RetryCount).Run(ctx, consumer)
}

const modeWorker = "worker"

type appConfig struct {
	Mode           string
	Rotation       rotate.Config
	Cog            bool
	CreationParams []string
	WorkDir        string
	Console        bool
	GDALConfig     *cmd.GDALConfig

	// worker mode
	PsProject     string
	PgqConnection string
	JobsQueue     string
	EventsQueue   string
	RetryCount    int
}

// creationOptions is a repeatable -co flag
type creationOptions []string

func (c *creationOptions) String() string {
	return strings.Join(*c, ",")
}

func (c *creationOptions) Set(value string) error {
	k, v, err := image.ParseCreationOption(value)
	if err != nil {
		return err
	}
	*c = append(*c, k+"="+v)
	return nil
}

func newAppConfig(args []string) (*appConfig, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing mode\n%s", usage)
	}
	config := appConfig{Mode: args[0]}
	fs := flag.NewFlagSet(config.Mode, flag.ContinueOnError)
	fs.StringVar(&config.WorkDir, "workdir", os.TempDir(), "scratch work directory for remote files")
	fs.BoolVar(&config.Console, "console", false, "human-readable logs")
	config.GDALConfig = cmd.GDALConfigFlags(fs)

	var co creationOptions
	switch config.Mode {
	case rotate.ModeTransform, rotate.ModeResample:
		fs.StringVar(&config.Rotation.InputPath, "in", "", "input raster (local path, file://, gs:// or s3:// uri)")
		fs.StringVar(&config.Rotation.OutputPath, "out", "", "output raster (transform: in place if empty)")
		fs.Float64Var(&config.Rotation.Theta, "theta", rotate.DefaultTheta(config.Mode), "rotation angle in degrees, counter-clockwise")
		fs.StringVar(&config.Rotation.Resampling, "resampling", "near", "resampling method (near)")
		fs.IntVar(&config.Rotation.Workers, "workers", 1, "number of bands processed in parallel (resample)")
		fs.BoolVar(&config.Cog, "cog", false, "rewrite the output as a Cloud Optimized GeoTIFF (resample only)")
		fs.Var(&co, "co", "GTiff creation option KEY=VALUE (repeatable)")
	case modeWorker:
		fs.StringVar(&config.PsProject, "psProject", "", "subscription project (gcp pubSub only)")
		fs.StringVar(&config.PgqConnection, "pgqConnection", "", "postgres connection of the pgqueue (replaces pubsub)")
		fs.StringVar(&config.JobsQueue, "jobsQueue", "", "pubsub subscription or pgqueue name of the rotation jobs")
		fs.StringVar(&config.EventsQueue, "eventsQueue", "", "pubsub topic or pgqueue name of the job events (optional)")
		fs.IntVar(&config.RetryCount, "retryCount", 1, "number of retries when a job failed with a temporary error")
	default:
		return nil, fmt.Errorf("unknown mode %q\n%s", config.Mode, usage)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	config.CreationParams = co

	if config.WorkDir == "" {
		return nil, fmt.Errorf("missing --workdir config flag")
	}
	if config.Mode == modeWorker {
		if config.JobsQueue == "" {
			return nil, fmt.Errorf("missing --jobsQueue config flag")
		}
		if config.PgqConnection == "" && config.PsProject == "" {
			return nil, fmt.Errorf("missing --psProject or --pgqConnection config flag")
		}
		return &config, nil
	}
	if config.Cog && config.Mode == rotate.ModeTransform {
		return nil, fmt.Errorf("--cog is only supported by the resample mode")
	}
	if err := config.Rotation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}
