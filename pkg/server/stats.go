// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// wrongPasswordDelay slows down password guessing.
var wrongPasswordDelay = 5 * time.Second

// serveStats writes the huddle's stats as JSON.
// The password is taken from HTTP basic auth; the user name is ignored.
func (srv *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	if srv.StatsPassword == "" {
		http.Error(w, "stats disabled", http.StatusNotFound)
		return
	}
	_, password, ok := r.BasicAuth()
	if !ok || password == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="huddled stats"`)
		http.Error(w, "no password", http.StatusUnauthorized)
		return
	}
	if !VerifyPassword(srv.StatsPassword, password) {
		srv.Log.WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
		}).Warn("Wrong stats password")
		time.Sleep(wrongPasswordDelay) // Prevent brute forcing
		http.Error(w, "wrong password", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(srv.Huddle.Stats()); err != nil {
		srv.Log.WithFields(logrus.Fields{
			"error": err,
		}).Error("Cannot write stats")
	}
}
