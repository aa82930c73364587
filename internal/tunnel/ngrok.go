// Package tunnel starts a local ngrok process to expose a webhook receiver
// port through a public URL.
package tunnel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"time"

	"github.com/keepmind9/botsocket/internal/logger"
	"github.com/sirupsen/logrus"
)

const (
	tunnelPollInterval = 500 * time.Millisecond
	apiRequestTimeout  = 5 * time.Second
)

// ngrokLogLine is one JSON log line on the ngrok process stdout
type ngrokLogLine struct {
	Addr string `json:"addr"`
	Lvl  string `json:"lvl"`
	Msg  string `json:"msg"`
	Obj  string `json:"obj"`
}

// tunnelInfo describes one tunnel reported by the local ngrok client API
type tunnelInfo struct {
	Proto     string `json:"proto"`
	PublicURL string `json:"public_url"`
}

type tunnelList struct {
	Tunnels []tunnelInfo `json:"tunnels"`
}

// Ngrok manages a local ngrok subprocess forwarding a single HTTP port
type Ngrok struct {
	port       int
	cmd        *exec.Cmd
	httpClient *http.Client
}

// NewNgrok creates a tunnel helper for the given local port
func NewNgrok(port int) *Ngrok {
	return &Ngrok{
		port:       port,
		httpClient: &http.Client{Timeout: apiRequestTimeout},
	}
}

// Start launches ngrok, waits for the client session to come up, then asks
// the local client API for the public URL of the tunnel. HTTPS is preferred
// when both protocols are offered.
func (n *Ngrok) Start(ctx context.Context) (string, error) {
	path, err := exec.LookPath("ngrok")
	if err != nil {
		return "", fmt.Errorf("ngrok binary not found, see https://ngrok.com/: %w", err)
	}

	n.cmd = exec.CommandContext(ctx, path, "http", strconv.Itoa(n.port),
		"-log=stdout", "-log-format=json", "-log-level=info")
	stdout, err := n.cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to attach to ngrok stdout: %w", err)
	}
	if err := n.cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ngrok: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"port": n.port,
		"pid":  n.cmd.Process.Pid,
	}).Info("ngrok-started-waiting-for-session")

	reader := bufio.NewReader(stdout)
	apiAddr, err := waitForSession(reader)
	if err != nil {
		n.Stop()
		return "", err
	}

	// keep draining stdout so the process never blocks on a full pipe
	go drain(reader)

	url, err := n.awaitTunnelURL(ctx, apiAddr)
	if err != nil {
		n.Stop()
		return "", err
	}

	logger.WithField("url", url).Info("ngrok-tunnel-established")
	return url, nil
}

// Stop tears down the tunnel by terminating the ngrok process
func (n *Ngrok) Stop() error {
	if n.cmd == nil || n.cmd.Process == nil {
		return nil
	}
	if err := n.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to terminate ngrok: %w", err)
	}
	n.cmd.Wait()
	return nil
}

// waitForSession scans ngrok log lines until the client session is
// established, returning the admin API address picked up along the way
func waitForSession(r *bufio.Reader) (string, error) {
	apiAddr := ""
	for {
		line, err := readLogLine(r)
		if err != nil {
			return "", fmt.Errorf("ngrok exited before session was established: %w", err)
		}
		// {"addr":"127.0.0.1:4041","lvl":"info","msg":"starting web service","obj":"web"}
		if line.Obj == "web" && line.Lvl == "info" && line.Msg == "starting web service" {
			apiAddr = line.Addr
		}
		// {"id":"...","lvl":"info","msg":"client session established","obj":"csess"}
		if line.Obj == "csess" && line.Lvl == "info" {
			break
		}
	}
	if apiAddr == "" {
		return "", fmt.Errorf("ngrok session established but no admin API address seen")
	}
	return apiAddr, nil
}

// readLogLine reads stdout until a line parses as JSON, skipping the rest
func readLogLine(r *bufio.Reader) (*ngrokLogLine, error) {
	for {
		raw, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		var line ngrokLogLine
		if json.Unmarshal(raw, &line) != nil {
			continue
		}
		return &line, nil
	}
}

// awaitTunnelURL polls the local client API until tunnel info appears.
// Tunnels may take a moment to come up after the session is established.
func (n *Ngrok) awaitTunnelURL(ctx context.Context, apiAddr string) (string, error) {
	for {
		url, err := n.fetchTunnelURL(ctx, apiAddr)
		if err == nil {
			return url, nil
		}
		logger.WithField("error", err).Debug("tunnel-info-not-ready")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(tunnelPollInterval):
		}
	}
}

func (n *Ngrok) fetchTunnelURL(ctx context.Context, apiAddr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/api/tunnels", apiAddr), nil)
	if err != nil {
		return "", err
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var list tunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", err
	}
	return selectPublicURL(list.Tunnels)
}

// selectPublicURL returns the https tunnel's URL when one exists, otherwise
// the first tunnel's
func selectPublicURL(tunnels []tunnelInfo) (string, error) {
	if len(tunnels) == 0 {
		return "", fmt.Errorf("no tunnels reported yet")
	}
	for _, t := range tunnels {
		if t.Proto == "https" {
			return t.PublicURL, nil
		}
	}
	return tunnels[0].PublicURL, nil
}

// drain keeps reading the ngrok log stream until the process exits
func drain(r *bufio.Reader) {
	for {
		line, err := readLogLine(r)
		if err != nil {
			if err != io.EOF {
				logger.WithField("error", err).Debug("ngrok-log-stream-closed")
			}
			return
		}
		logger.WithFields(logrus.Fields{
			"obj": line.Obj,
			"msg": line.Msg,
		}).Debug("ngrok-log-line")
	}
}
