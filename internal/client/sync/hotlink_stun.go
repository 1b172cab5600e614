package sync

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pion/stun/v3"
)

const (
	hotlinkSTUNServerEnv = "SYFTBOX_HOTLINK_STUN_SERVER"
	hotlinkSTUNDefault   = "stun.l.google.com:19302"
	hotlinkSTUNTimeout   = 1200 * time.Millisecond
)

func hotlinkSTUNServer() string {
	server := strings.TrimSpace(os.Getenv(hotlinkSTUNServerEnv))
	switch strings.ToLower(server) {
	case "":
		return hotlinkSTUNDefault
	case "0", "off", "disabled":
		return ""
	default:
		return server
	}
}

// stunDiscoverAddr probes the configured STUN server for our externally
// mapped address and reports it as "ip:port" using the given local port.
// Best effort only; assumes an endpoint-independent NAT mapping.
func stunDiscoverAddr(localPort int) (string, bool) {
	server := hotlinkSTUNServer()
	if server == "" {
		return "", false
	}

	client, err := stun.Dial("udp4", server)
	if err != nil {
		slog.Debug("hotlink stun dial failed", "server", server, "error", err)
		return "", false
	}
	defer client.Close()

	type result struct {
		ip net.IP
		ok bool
	}
	ch := make(chan result, 1)

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	go func() {
		var res result
		err := client.Do(msg, func(ev stun.Event) {
			if ev.Error != nil {
				return
			}
			var xor stun.XORMappedAddress
			if err := xor.GetFrom(ev.Message); err != nil {
				return
			}
			res = result{ip: xor.IP, ok: true}
		})
		if err != nil {
			res.ok = false
		}
		ch <- res
	}()

	select {
	case res := <-ch:
		if !res.ok || res.ip == nil {
			return "", false
		}
		return fmt.Sprintf("%s:%d", res.ip.String(), localPort), true
	case <-time.After(hotlinkSTUNTimeout):
		slog.Debug("hotlink stun probe timeout", "server", server)
		return "", false
	}
}
