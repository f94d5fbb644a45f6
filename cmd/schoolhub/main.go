// SchoolHub Core - school management backend
//
// Students read their grades, teachers record grades in the subjects they
// are assigned, and admins approve accounts and manage subjects. Every
// change is published on an in-process event bus that feeds the audit
// trail, Prometheus, MQTT, InfluxDB and the admin live feed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/schoolhub-core/internal/api"
	"github.com/nerrad567/schoolhub-core/internal/audit"
	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/events"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/cache"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/database"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/queue"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/redis"
	"github.com/nerrad567/schoolhub-core/internal/mailer"
	"github.com/nerrad567/schoolhub-core/internal/metrics"
	"github.com/nerrad567/schoolhub-core/internal/ratelimit"
	"github.com/nerrad567/schoolhub-core/internal/school"
	"github.com/nerrad567/schoolhub-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	eventBufferSize = 1024
	emailQueueSize  = 256
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		err = runMigrate(ctx, os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or a
// long-running component fails.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting SchoolHub Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	health := map[string]api.HealthChecker{"database": db}

	// Redis backs the cache, the login limiter and the email queue when
	// enabled. Without it all three run in-process.
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		health["redis"] = rdb
		log.Info("Redis connected", "addr", cfg.Redis.Addr)
	}
	stores := buildStores(cfg, rdb, log)

	m := metrics.New()
	bus := events.NewBus(log.Logger, eventBufferSize)
	bus.Subscribe("metrics", m)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	bus.Subscribe("audit", audit.NewSink(auditRepo))

	hub := api.NewHub(cfg.WebSocket, log)

	// With MQTT the live feed reads events back from the broker, so every
	// node behind a load balancer sees every event.
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0-2
		bus.Subscribe("mqtt", mqtt.NewEventSink(mqttClient, qos))
		if subErr := mqttClient.SubscribeEvents(qos, hub.Publish); subErr != nil {
			return fmt.Errorf("subscribing to events: %w", subErr)
		}
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		bus.Subscribe("websocket", hub)
		log.Info("MQTT disabled, live feed is local only")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bus.Subscribe("influxdb", influxdb.NewEventSink(influxClient))
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	accounts, guard, err := buildAccounts(ctx, cfg, db, bus, mailer.NewEnqueuer(stores.emails), log)
	if err != nil {
		return err
	}

	schoolSvc := school.NewService(school.Deps{
		Repo:     school.NewRepository(db.DB),
		Students: accounts[auth.RoleStudent].Accounts(),
		Teachers: accounts[auth.RoleTeacher].Accounts(),
		Events:   bus,
		Logger:   log.Logger,
	})

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Accounts:     accounts,
		Guard:        guard,
		School:       schoolSvc,
		Audit:        auditRepo,
		Cache:        stores.cache,
		CacheTTL:     cfg.CacheTTL(),
		LoginLimiter: stores.limiter,
		Metrics:      m,
		Hub:          hub,
		DB:           db.DB,
		Health:       health,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sender, err := mailer.NewSender(cfg.Mail)
	if err != nil {
		return fmt.Errorf("creating mail sender: %w", err)
	}

	worker := mailer.NewWorker(stores.emails, sender, log.Logger, m)
	err = serve(ctx, server, log, bus.Run, hub.Run, worker.Run)
	if err != nil {
		return err
	}

	log.Info("SchoolHub Core stopped")
	return nil
}

// runMigrate handles "schoolhub migrate [up|down|status]". up applies every
// pending migration, down rolls back the newest one, status lists both.
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	if action != "up" && action != "down" && action != "status" {
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "down":
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// component is the part of the API server serve drives.
type component interface {
	Start(ctx context.Context) error
	Close() error
}

// serve runs the background loops, starts server and blocks until ctx ends
// or a loop fails. Every loop has returned by the time serve does, also when
// the server fails to start.
func serve(ctx context.Context, server component, log *logging.Logger, loops ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		g.Go(func() error { return loop(gctx) })
	}

	if err := server.Start(gctx); err != nil {
		cancel()
		if waitErr := g.Wait(); waitErr != nil {
			log.Error("background loop failed during startup", "error", waitErr)
		}
		return fmt.Errorf("starting API server: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	return g.Wait()
}

// getConfigPath returns SCHOOLHUB_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SCHOOLHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// backends holds the stores that switch between Redis and in-process.
type backends struct {
	cache   cache.Cache
	limiter ratelimit.Limiter
	emails  queue.Queue
}

func buildStores(cfg *config.Config, rdb *redis.Client, log *logging.Logger) backends {
	s := backends{cache: cache.Noop{}}

	if rdb != nil {
		s.emails = queue.NewRedisQueue(rdb.Client, cfg.Redis.QueueKey, log.Logger)
	} else {
		s.emails = queue.NewInMemory(emailQueueSize)
	}

	if cfg.Cache.Enabled {
		if rdb != nil {
			s.cache = cache.NewRedis(rdb.Client, "schoolhub:cache:")
		} else {
			s.cache = cache.NewMemory()
		}
	}

	if cfg.Security.RateLimit.Enabled {
		requests, window := cfg.Security.RateLimit.LoginRequests, cfg.LoginWindow()
		if rdb != nil {
			s.limiter = ratelimit.NewRedis(rdb.Client, "schoolhub:ratelimit:", requests, window)
		} else {
			s.limiter = ratelimit.NewMemory(requests, window)
		}
	}
	return s
}

// buildAccounts creates one auth service per role over a shared codec and
// seeds the first admin on an empty database.
func buildAccounts(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.Bus, resets auth.ResetMailer, log *logging.Logger) (map[auth.Role]*auth.Service, *auth.Guard, error) {
	codec := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  cfg.Security.JWT.Secret,
		RefreshSecret: cfg.Security.JWT.RefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	})
	hasher := auth.NewBcryptHasher(cfg.Security.Password.BcryptCost)

	services := make(map[auth.Role]*auth.Service, len(auth.Roles))
	repos := make([]auth.AccountRepository, 0, len(auth.Roles))
	for _, role := range auth.Roles {
		repo, err := auth.NewAccountRepository(db.DB, role)
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s repository: %w", role, err)
		}
		svc, err := auth.NewService(role, auth.ServiceDeps{
			Accounts: repo,
			Codec:    codec,
			Hasher:   hasher,
			Mailer:   resets,
			Events:   bus,
			Logger:   log.Logger,
			Hostname: cfg.Site.Hostname,
			ResetTTL: cfg.ResetTokenTTL(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s service: %w", role, err)
		}
		services[role] = svc
		repos = append(repos, repo)
	}

	if _, err := auth.SeedAdmin(ctx, services[auth.RoleAdmin].Accounts(), hasher, log.Logger); err != nil {
		return nil, nil, fmt.Errorf("seeding admin: %w", err)
	}

	return services, auth.NewGuard(codec, repos...), nil
}
