package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/go-redis/redis/v8"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"syntra-floor/config"
	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/database"
	"syntra-floor/internal/events"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
	"syntra-floor/internal/logger"
	"syntra-floor/internal/redis"
	"syntra-floor/internal/rpc"
)

func main() {
	cfg := config.LoadConfig()

	opts := []logger.Option{logger.WithFormat(logger.ParseFormat(cfg.Service.LogFormat))}
	if cfg.Service.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.Service.LogFile))
	}
	lg := logger.NewLogger(cfg.Service.Name, opts...)
	defer lg.Close()

	policy, err := floor.ParseUnmergePolicy(cfg.Floor.UnmergePolicy)
	if err != nil {
		log.Fatalf("Invalid floor config: %v", err)
	}
	coordOpts := []coordinator.Option{
		coordinator.WithLogger(lg),
		coordinator.WithUnmergePolicy(policy),
	}

	var rdb goredis.UniversalClient
	if cfg.Floor.LockBackend == "redis" || wants(cfg.Floor.Notifiers, events.SinkRedis) {
		rdb, err = config.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
	}

	switch cfg.Floor.LockBackend {
	case "redis":
		coordOpts = append(coordOpts, coordinator.WithLocker(redis.NewLocker(rdb, cfg.Floor.LockTTL, lg)))
	case "memory", "":
	default:
		log.Fatalf("Unknown lock backend %q", cfg.Floor.LockBackend)
	}

	var producer *events.KafkaProducer
	if wants(cfg.Floor.Notifiers, events.SinkKafka) {
		producer, err = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Mock, lg)
		if err != nil {
			log.Fatalf("Failed to create kafka producer: %v", err)
		}
		defer producer.Close()
	}

	notifier, err := events.FromNames(cfg.Floor.Notifiers, events.Options{Redis: rdb, Kafka: producer, Log: lg})
	if err != nil {
		log.Fatalf("Invalid event sinks: %v", err)
	}
	coordOpts = append(coordOpts, coordinator.WithNotifier(notifier))

	var archive rpc.ArchiveReader
	if dsn := cfg.DB.DSN(); dsn != "" {
		db, err := database.NewConnection(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to db: %v", err)
		}
		if err := database.MigrateArchiveDB(db); err != nil {
			log.Fatalf("Failed to migrate archive database: %v", err)
		}
		archiver := database.NewArchiver(db, lg)
		coordOpts = append(coordOpts, coordinator.WithArchiver(archiver))
		archive = archiver
	} else {
		lg.Warn("STARTUP", "DB_HOST not set, closed checks will not be archived")
	}

	c := coordinator.New(floor.NewRegistry(nil), ledger.New(), coordOpts...)
	if cfg.Floor.SeedLayout {
		if err := seed(c); err != nil {
			log.Fatalf("Failed to seed layout: %v", err)
		}
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	s, hs := rpc.NewGRPCServer(rpc.NewServer(c, archive, lg), lg)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		lg.Info("SHUTDOWN", "stopping floor service")
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		s.GracefulStop()
	}()

	lg.Info("STARTUP", "floor service listening", "port", cfg.GRPC.Port, "lock_backend", cfg.Floor.LockBackend, "unmerge_policy", string(policy))
	log.Printf(" 🍽️  Floor service listening on :%s", cfg.GRPC.Port)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}

	if violations := c.CheckInvariants(); len(violations) > 0 {
		lg.Warn("SHUTDOWN", "floor state inconsistent at exit", "violations", violations)
	}
}

func wants(names []string, sink string) bool {
	for _, n := range names {
		if n == sink {
			return true
		}
	}
	return false
}

// seed lays out a small dining room for local runs.
func seed(c *coordinator.Coordinator) error {
	l := c.CreateLayout("Main floor")
	_, err := c.AddMultipleTables(l.ID, []floor.TableSpec{
		{Shape: floor.ShapeRound, Quantity: 4},
		{Shape: floor.ShapeSquare, Quantity: 4},
		{Shape: floor.ShapeBooth, Quantity: 2},
		{Shape: floor.ShapeBar, Quantity: 1},
	})
	return err
}
