// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package redisbus connects huddled instances through Redis pub/sub.
// This lets several instances behind a load balancer share rooms.
package redisbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/huddle"
)

// DefaultChannel is the pub/sub channel used when none is given.
const DefaultChannel = "huddled:events"

// Bus implements huddle.Bus with Redis pub/sub.
type Bus struct {
	rdb     *redis.Client
	channel string
	log     *logrus.Logger
}

// New connects to the Redis server at url, such as redis://localhost:6379/0.
// If channel is empty, DefaultChannel is used.
func New(ctx context.Context, url, channel string, log *logrus.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "Parse Redis URL")
	}
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := redis.NewClient(opts)

	// Fail fast if Redis isn't there.
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "Connect to Redis")
	}

	return &Bus{
		rdb:     rdb,
		channel: channel,
		log:     log,
	}, nil
}

// Publish sends an envelope to every subscribed instance.
func (b *Bus) Publish(ctx context.Context, env huddle.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "Encode envelope")
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return errors.Wrap(err, "Publish envelope")
	}
	return nil
}

// Subscribe calls fn for each envelope published on the bus, until ctx is done.
// Envelopes that cannot be decoded are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, fn func(huddle.Envelope)) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrap(err, "Subscribe")
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("Subscription closed")
			}
			var env huddle.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.WithFields(logrus.Fields{
					"error": err,
				}).Warn("Cannot decode envelope from bus")
				continue
			}
			fn(env)
		}
	}
}

// Health checks that Redis is still reachable.
func (b *Bus) Health(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
