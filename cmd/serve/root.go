package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/stromnet/strom/cmd/util"
	"github.com/stromnet/strom/rpc/common"
	"github.com/stromnet/strom/rpc/host"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a strom node host",
		Long:    `Start a strom node host with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is STROM_<flag> (e.g. STROM_SHARDS=8)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Number of independent execution units on this node. Every peer connection is homed to exactly one shard"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:7575", cmdUtil.WrapString("The address on which the node accepts inbound RPC (host:port for tcp, a path for unix)"))

	key = "peers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated initial cluster membership in the format '1=host1:7575,2=host2:7575'. Each peer connection is emplaced into the cache of its owning shard at startup"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for a single request round trip"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of concurrent request handlers per inbound connection"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for the transport"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for the transport (in seconds)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse peers
	peers, err := cmdUtil.ParsePeers(viper.GetString("peers"))
	if err != nil {
		return err
	}

	serveCmdConfig.ShardCount = uint64(viper.GetInt("shards"))
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Peers = peers
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxWorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		},
	}

	if serveCmdConfig.ShardCount == 0 {
		return fmt.Errorf("shards must be at least 1")
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	fmt.Println(serveCmdConfig.String())

	// Create the outbound transport factory
	factory, err := cmdUtil.GetClientFactory()
	if err != nil {
		return err
	}

	// Create the host with one connection cache per shard
	h := host.NewHost(serveCmdConfig.ShardCount, factory)

	// Install the initial peer connections, each on its owning shard
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for id, endpoint := range serveCmdConfig.Peers {
		if err := h.EmplaceNode(ctx, id, serveCmdConfig.ClientConfigFor(endpoint)); err != nil {
			return fmt.Errorf("failed to emplace peer %s: %v", id, err)
		}
	}

	// Create the server transport and serve inbound requests. Until the
	// higher protocol layers land on this layer, inbound frames are answered
	// with their own payload, which doubles as a connectivity check.
	serverTransport, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}
	serverTransport.RegisterHandler(func(shardID uint64, req []byte) []byte {
		return req
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serverTransport.Listen(*serveCmdConfig)
	}()

	// Wait for shutdown signal or listener failure
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		fmt.Printf("received %s, shutting down\n", s)
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// Stop the listener first, then tear down all cached connections
	if err := serverTransport.Close(); err != nil {
		return err
	}
	return h.Stop()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	cmdUtil.InitConfig()
}
