// Package kafkaconsumer evicts cache entries in response to feature-update
// events consumed from Kafka.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"

	"github.com/greglum/map-project/internal/cache"
	"github.com/greglum/map-project/internal/core/observability"
	"github.com/greglum/map-project/internal/core/service"
	"github.com/greglum/map-project/internal/invalidation"
)

var json = jsoniter.ConfigFastest

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  cache.Interface
	dedupe *versionDedupe
}

func New(cfg Config, logger *slog.Logger, c cache.Interface) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		dedupe: newVersionDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and processes events until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache dependency")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single feature-update message. Undecodable or invalid
// events fail the claim; stale data versions are dropped silently.
func (c *Consumer) ProcessOne(_ context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveInvalidation("decode", 0, err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.ObserveInvalidation(ev.Op, 0, err)
		return fmt.Errorf("invalid event: %w", err)
	}

	if !c.dedupe.shouldApply(ev.FeatureID, ev.DataVersion) {
		c.logger.Debug("stale event skipped",
			"feature", ev.FeatureID, "data_version", ev.DataVersion)
		return nil
	}

	delKeys := keysFor(ev)
	if err := c.cache.Del(delKeys...); err != nil {
		observability.ObserveInvalidation(ev.Op, 0, err)
		return fmt.Errorf("cache del: %w", err)
	}

	observability.ObserveInvalidation(ev.Op, len(delKeys), nil)
	c.logger.Debug("invalidated keys",
		"feature", ev.FeatureID, "op", ev.Op, "keys", len(delKeys))
	return nil
}

// keysFor lists every cache entry a changed feature could be serving
// through: its own entry, each listing filter combination it matches, and
// the hierarchy listings.
func keysFor(ev invalidation.Event) []string {
	keys := []string{
		service.FeatureCacheKey(ev.FeatureID),
		service.ListCacheKey("", ""),
		service.IslandsCacheKey(),
	}
	if ev.Island != "" {
		keys = append(keys,
			service.ListCacheKey(ev.Island, ""),
			service.DistrictsCacheKey(ev.Island))
	}
	if ev.District != "" {
		keys = append(keys, service.ListCacheKey("", ev.District))
	}
	if ev.Island != "" && ev.District != "" {
		keys = append(keys, service.ListCacheKey(ev.Island, ev.District))
	}
	return keys
}
