package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the standard Minecraft server port, used when the viewer
// omits one.
const DefaultPort = 25565

// ParseServerAddr splits a viewer-supplied "host[:port]" string. A missing
// port defaults to DefaultPort.
func ParseServerAddr(serverIP string) (host string, port int, err error) {
	serverIP = strings.TrimSpace(serverIP)
	if serverIP == "" {
		return "", 0, fmt.Errorf("server address is empty")
	}

	host, portStr, found := strings.Cut(serverIP, ":")
	if host == "" {
		return "", 0, fmt.Errorf("server address %q has no host", serverIP)
	}
	if !found || portStr == "" {
		return host, DefaultPort, nil
	}

	port, err = strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q in server address", portStr)
	}
	return host, port, nil
}
