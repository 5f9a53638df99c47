// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/huddled/pkg/huddle"
	"github.com/n0ot/huddled/pkg/redisbus"
	"github.com/n0ot/huddled/pkg/server"
	"github.com/n0ot/huddled/pkg/version"
)

var disableTLS bool

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the huddled server",
	RunE:  runServer,
}

func init() {
	RootCmd.AddCommand(startCmd)

	startCmd.Flags().StringP("bind", "b", "127.0.0.1:3000", "Bind the server to host:port. Leave host empty to bind to all interfaces.")
	viper.BindPFlag("server.bind", startCmd.Flags().Lookup("bind"))
	startCmd.Flags().IntP("time-between-pings", "t", 30, "How often pings should be sent in seconds (0 disables)")
	viper.BindPFlag("server.timeBetweenPings", startCmd.Flags().Lookup("time-between-pings"))
	startCmd.Flags().IntP("pings-until-timeout", "p", 2, "Number of pings that can go unanswered before inactive clients are dropped (0 disables timeout)")
	viper.BindPFlag("server.pingsUntilTimeout", startCmd.Flags().Lookup("pings-until-timeout"))
	startCmd.Flags().String("broadcast-scope", "room", `Who hears presence and gestures: "room" or "global"`)
	viper.BindPFlag("rooms.broadcastScope", startCmd.Flags().Lookup("broadcast-scope"))
	startCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", startCmd.Flags().Lookup("log-level"))
	startCmd.Flags().BoolVarP(&disableTLS, "disable-tls", "d", false, "Overrides config option to enable TLS")

	viper.SetDefault("server.maxMessageSize", server.DefaultMaxMessageSize)
	viper.SetDefault("server.sendBufferSize", server.DefaultSendBufferSize)
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.statsPassword", "")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.channel", redisbus.DefaultChannel)
	viper.SetDefault("tls.useTls", true)
}

func newLogger() (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = os.Stderr

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	log.Level = level

	switch format := viper.GetString("log.format"); format {
	case "text", "":
		log.Formatter = new(logrus.TextFormatter)
	case "json":
		log.Formatter = new(logrus.JSONFormatter)
	default:
		return nil, errors.Errorf("log.format: unknown format %q", format)
	}
	return log, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	var motd string
	if motdFile := os.ExpandEnv(viper.GetString("huddled.motdFile")); motdFile != "" {
		motdBuf, err := os.ReadFile(motdFile)
		if err != nil {
			return errors.Wrap(err, "Read MOTD")
		}
		motd = strings.TrimSpace(string(motdBuf))
	}

	scope, err := huddle.ParseScope(viper.GetString("rooms.broadcastScope"))
	if err != nil {
		return errors.Wrap(err, "rooms.broadcastScope")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := huddle.Options{
		MOTD:       motd,
		Scope:      scope,
		InstanceID: viper.GetString("redis.instanceID"),
	}
	if viper.GetBool("redis.enabled") {
		bus, err := redisbus.New(ctx, viper.GetString("redis.url"), viper.GetString("redis.channel"), log)
		if err != nil {
			// Keep serving local clients.
			log.WithFields(logrus.Fields{
				"error": err,
			}).Error("Cannot connect to Redis; running without other instances")
		} else {
			defer bus.Close()
			opts.Bus = bus
		}
	}
	h := huddle.New(log, opts)

	go func() {
		if err := h.Run(ctx); err != nil {
			log.WithFields(logrus.Fields{
				"error": err,
			}).Error("Lost connection to other instances")
		}
	}()

	srv := &server.Server{
		TimeBetweenPings:  viper.GetDuration("server.timeBetweenPings") * time.Second,
		PingsUntilTimeout: viper.GetInt("server.pingsUntilTimeout"),
		MaxMessageSize:    viper.GetInt64("server.maxMessageSize"),
		SendBufferSize:    viper.GetInt("server.sendBufferSize"),
		AllowedOrigins:    viper.GetStringSlice("server.allowedOrigins"),
		StatsPassword:     viper.GetString("server.statsPassword"),
		Log:               log,
		Huddle:            h,
	}

	bindAddr := viper.GetString("server.bind")
	certFile := os.ExpandEnv(viper.GetString("tls.certFile"))
	keyFile := os.ExpandEnv(viper.GetString("tls.keyFile"))
	useTLS := viper.GetBool("tls.useTls")

	log.WithFields(logrus.Fields{
		"version":         version.GetVersion(),
		"instance":        h.InstanceID(),
		"broadcast_scope": scope,
	}).Info("Starting huddled")
	if useTLS && !disableTLS {
		err = srv.ListenAndServeTLS(ctx, bindAddr, certFile, keyFile)
	} else {
		err = srv.ListenAndServe(ctx, bindAddr)
	}
	if err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
