// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package commands

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/n0ot/huddled/pkg/huddle"
)

const defaultStatsPort = "3000"

var (
	statsPort              string
	skipTLSVerification    bool
	statsServerCertificate string
	promptForPassword      bool
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats [host]",
	Short: "Print stats from a huddled server",
	Long: `stats queries a huddled server for running stats.

If the host is omitted, the local huddled server will be queried.
The password is read from HUDDLE_STATS_PASSWORD unless --prompt-for-password is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := "127.0.0.1"
		if len(args) > 0 {
			host = args[0]
			if disableTLS {
				fmt.Fprintln(os.Stderr, "Warning: TLS is disabled. All traffic including your stats password will be sent in the clear.")
			} else if skipTLSVerification {
				fmt.Fprintln(os.Stderr, "Warning: skipping TLS verification is insecure.")
			}
		} else {
			// Use the options from the local server's configuration.
			if _, port, err := net.SplitHostPort(viper.GetString("server.bind")); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot determine local server port from config; using \"%s\"\n", statsPort)
			} else {
				statsPort = port
			}
			disableTLS = !viper.GetBool("tls.useTls")
			skipTLSVerification = true
			if !disableTLS {
				fmt.Fprintln(os.Stderr, "Skipping TLS verification for local server query")
			}
		}
		return getStats(host)
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsPort, "port", "P", defaultStatsPort, "port of the server to query stats for")
	statsCmd.Flags().BoolVarP(&disableTLS, "disable-tls", "d", false, "disable connecting over TLS")
	statsCmd.Flags().BoolVarP(&skipTLSVerification, "no-tls-verify", "n", false, "skip TLS verification\n    This is insecure, an attacker can get your password, and you should only use this for testing")
	statsCmd.Flags().StringVarP(&statsServerCertificate, "server-certificate", "s", "", "file containing the PEM encoded certificate to use for server verification, instead of the system's certificate store")
	statsCmd.Flags().BoolVarP(&promptForPassword, "prompt-for-password", "p", false, "prompt for the server's stats password")
}

func getStats(statsHost string) error {
	var statsPassword string
	if promptForPassword {
		fmt.Printf("Password: ")
		pass, err := gopass.GetPasswd()
		if err != nil {
			return err
		}
		statsPassword = string(pass)
	}

	if statsPassword == "" {
		statsPassword = os.Getenv("HUDDLE_STATS_PASSWORD")
	}

	if statsPassword == "" {
		return errors.New("A stats password is required")
	}

	scheme := "https"
	transport := &http.Transport{}
	if disableTLS {
		scheme = "http"
	} else {
		var certPool *x509.CertPool
		if statsServerCertificate != "" {
			cert, err := os.ReadFile(statsServerCertificate)
			if err != nil {
				return errors.Wrap(err, "Open server certificate")
			}
			certPool = x509.NewCertPool()
			certPool.AppendCertsFromPEM(cert)
		}
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipTLSVerification,
			RootCAs:            certPool,
		}
	}

	statsAddr := net.JoinHostPort(statsHost, statsPort)
	statsURL := url.URL{Scheme: scheme, Host: statsAddr, Path: "/stats"}
	req, err := http.NewRequest(http.MethodGet, statsURL.String(), nil)
	if err != nil {
		return errors.Wrap(err, "Request stats")
	}
	req.SetBasicAuth("", statsPassword)

	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Connect to huddled server")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("Server returned an error: %s: %s", resp.Status, body)
	}

	var stats huddle.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return errors.Wrap(err, "Get stats response from server")
	}

	// Don't display the default port in the output.
	friendlyAddr := statsHost
	if statsPort != defaultStatsPort {
		friendlyAddr = statsAddr
	}
	fmt.Printf(`Stats for %s (instance %s):
Uptime: %s
Broadcast scope: %s

Number of rooms: %d
Max rooms: %d on %s

Number of clients: %d (%d with an active gesture)
Max clients: %d on %s

Signals relayed: %d (%d dropped)
Gestures relayed: %d
`, friendlyAddr, stats.InstanceID,
		stats.Uptime.Round(time.Second),
		stats.BroadcastScope,
		stats.NumRooms,
		stats.MaxRooms, stats.MaxRoomsAt,
		stats.NumClients, stats.ActiveGestures,
		stats.MaxClients, stats.MaxClientsAt,
		stats.SignalsRelayed, stats.SignalsDropped,
		stats.GesturesRelayed)
	return nil
}
