// signalwatch prints signal decisions streamed by a running trafficsignal
// dashboard, one line per frame.
//
// Usage: signalwatch -addr localhost:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-trafficlight/internal/httpc"
	"github.com/teslashibe/go-trafficlight/internal/log"
	"github.com/teslashibe/go-trafficlight/pkg/pipeline"
	"github.com/teslashibe/go-trafficlight/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	changesOnly := flag.Bool("changes", false, "Only print when the green lane changes")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := watch(ctx, *addr, *changesOnly); err != nil {
		log.Error("watch failed", "addr", *addr, "error", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, addr string, changesOnly bool) error {
	var policy web.PolicyView
	policyURL := url.URL{Scheme: "http", Host: addr, Path: "/api/policy"}
	if err := httpc.GetJSON(ctx, policyURL.String(), &policy); err != nil {
		return fmt.Errorf("fetch policy: %w", err)
	}
	fmt.Printf("🚦 Vehicles: %v | tiers <%d: %ds, <%d: %ds, else %ds\n",
		policy.VehicleClassNames,
		policy.MediumThreshold, policy.LowGreenSec,
		policy.HighThreshold, policy.MediumGreenSec,
		policy.HighGreenSec)

	wsURL := url.URL{Scheme: "ws", Host: addr, Path: "/ws/status"}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL.String(), err)
	}
	defer conn.Close()

	// Unblock ReadJSON on shutdown
	stop := closeOnCancel(ctx, conn)
	defer stop()

	var last pipeline.Result
	for {
		var res pipeline.Result
		if err := conn.ReadJSON(&res); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read status: %w", err)
		}

		if changesOnly && last.Sequence != 0 && res.Decision.GreenLane == last.Decision.GreenLane {
			last = res
			continue
		}
		fmt.Println(formatResult(res))
		last = res
	}
}

// closeOnCancel closes conn when ctx is done. The returned stop func ends
// the watcher and waits for it to exit.
func closeOnCancel(ctx context.Context, conn *websocket.Conn) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()
	return func() {
		close(done)
		<-exited
	}
}

func formatResult(res pipeline.Result) string {
	return fmt.Sprintf("#%-6d L1=%-3d L2=%-3d %s (%dms)",
		res.Sequence,
		res.Decision.Counts.Lane1,
		res.Decision.Counts.Lane2,
		res.Decision,
		res.InferenceLatency.Milliseconds())
}
