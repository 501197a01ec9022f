package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/fare-finder/internal/config"
	"github.com/example/fare-finder/internal/logging"
	"github.com/example/fare-finder/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total prediction outcome messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger("fare-finder-consumer", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	metricsAddr := cfg.MetricsAddr
	flag.StringVar(&metricsAddr, "metrics-addr", metricsAddr, "address to serve prometheus metrics on")
	flag.Parse()

	brokers, topic, group := cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", topic, "brokers", brokers, "group", group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var o models.Outcome
		if err := json.Unmarshal(m.Value, &o); err != nil || o.Phase == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err, "offset", m.Offset)
			continue
		}

		if err := recordWithRetry(ctx, radapter, &o, cfg.RetryAttempts, cfg.RetryDelay); err != nil {
			redisErrors.Inc()
			logger.Error("redis update failed", "attempt_id", o.ID, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater is the subset of redis operations the consumer needs.
type RedisUpdater interface {
	HIncrBy(ctx context.Context, key, field string, n int64) error
	HIncrByFloat(ctx context.Context, key, field string, v float64) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) HIncrBy(ctx context.Context, key, field string, n int64) error {
	return r.c.HIncrBy(ctx, key, field, n).Err()
}

func (r *redisAdapter) HIncrByFloat(ctx context.Context, key, field string, v float64) error {
	return r.c.HIncrByFloat(ctx, key, field, v).Err()
}

// statsKey buckets outcomes per UTC day.
func statsKey(o *models.Outcome) string {
	return "fare:stats:" + o.CreatedAt.UTC().Format("2006-01-02")
}

// recordWithRetry folds one outcome into the daily counters: a count per phase and,
// for successes, the running fare sum. Each step is retried with a doubling delay.
func recordWithRetry(ctx context.Context, rc RedisUpdater, o *models.Outcome, attempts int, delay time.Duration) error {
	key := statsKey(o)
	steps := []func() error{
		func() error { return rc.HIncrBy(ctx, key, o.Phase, 1) },
	}
	if o.Fare != nil {
		fare := *o.Fare
		steps = append(steps, func() error { return rc.HIncrByFloat(ctx, key, "fare_sum", fare) })
	}
	for _, step := range steps {
		d := delay
		for i := 0; ; i++ {
			err := step()
			if err == nil {
				break
			}
			if i == attempts-1 {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			d *= 2
		}
	}
	return nil
}
