package main

import (
	"bufio"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/pkg/config"
	"github.com/shubham-shewale/stock-orderbook/pkg/protocol"
)

// stockclient sends each stdin line to the server and prints the reply.
func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <host> <port>\n", os.Args[0])
		os.Exit(1)
	}
	host, port := os.Args[1], os.Args[2]

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		logger.Fatal("Failed to connect", zap.String("host", host), zap.String("port", port), zap.Error(err))
	}
	defer conn.Close()

	in := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for in.Scan() {
		if _, err := fmt.Fprintf(conn, "%s\n", in.Text()); err != nil {
			logger.Error("Send failed", zap.Error(err))
			return
		}
		reply, err := protocol.ReadFrame(conn, cfg.Server.MessageSize)
		if err != nil {
			logger.Info("Server closed the connection", zap.Error(err))
			return
		}
		out.WriteString(reply)
		out.Flush()
	}
}
