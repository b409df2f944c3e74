//go:build !unix

package tcp

import "net"

func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
