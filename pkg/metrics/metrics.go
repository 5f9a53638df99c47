// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package metrics exports huddle stats to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n0ot/huddled/pkg/huddle"
)

const namespace = "huddled"

// StatsSource is anything that can report huddle stats, such as *huddle.Huddle.
type StatsSource interface {
	Stats() huddle.Stats
}

// Collector reads stats from a StatsSource each time it is scraped.
type Collector struct {
	src StatsSource

	clients         *prometheus.Desc
	maxClients      *prometheus.Desc
	rooms           *prometheus.Desc
	maxRooms        *prometheus.Desc
	activeGestures  *prometheus.Desc
	signalsRelayed  *prometheus.Desc
	signalsDropped  *prometheus.Desc
	gesturesRelayed *prometheus.Desc
	uptime          *prometheus.Desc
}

// NewCollector creates a Collector for src.
func NewCollector(src StatsSource) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		src:             src,
		clients:         desc("clients", "Number of connected clients."),
		maxClients:      desc("clients_max", "Most clients connected at once since start."),
		rooms:           desc("rooms", "Number of rooms with at least one member."),
		maxRooms:        desc("rooms_max", "Most rooms open at once since start."),
		activeGestures:  desc("active_gestures", "Number of clients with an active gesture."),
		signalsRelayed:  desc("signals_relayed_total", "Signals delivered to their target."),
		signalsDropped:  desc("signals_dropped_total", "Signals dropped because the target was gone."),
		gesturesRelayed: desc("gestures_relayed_total", "Gestures and gesture clears broadcast."),
		uptime:          desc("uptime_seconds", "Seconds since the service started.", "instance_id", "broadcast_scope"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clients
	ch <- c.maxClients
	ch <- c.rooms
	ch <- c.maxRooms
	ch <- c.activeGestures
	ch <- c.signalsRelayed
	ch <- c.signalsDropped
	ch <- c.gesturesRelayed
	ch <- c.uptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(s.NumClients))
	ch <- prometheus.MustNewConstMetric(c.maxClients, prometheus.GaugeValue, float64(s.MaxClients))
	ch <- prometheus.MustNewConstMetric(c.rooms, prometheus.GaugeValue, float64(s.NumRooms))
	ch <- prometheus.MustNewConstMetric(c.maxRooms, prometheus.GaugeValue, float64(s.MaxRooms))
	ch <- prometheus.MustNewConstMetric(c.activeGestures, prometheus.GaugeValue, float64(s.ActiveGestures))
	ch <- prometheus.MustNewConstMetric(c.signalsRelayed, prometheus.CounterValue, float64(s.SignalsRelayed))
	ch <- prometheus.MustNewConstMetric(c.signalsDropped, prometheus.CounterValue, float64(s.SignalsDropped))
	ch <- prometheus.MustNewConstMetric(c.gesturesRelayed, prometheus.CounterValue, float64(s.GesturesRelayed))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, s.Uptime.Seconds(), s.InstanceID, s.BroadcastScope)
}

// Handler serves metrics for src, along with Go runtime and process metrics.
func Handler(src StatsSource) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
