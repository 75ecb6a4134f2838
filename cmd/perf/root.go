package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/stromnet/strom/cmd/util"
	"github.com/stromnet/strom/rpc/affinity"
	"github.com/stromnet/strom/rpc/common"
	"github.com/stromnet/strom/rpc/host"
	"github.com/stromnet/strom/rpc/transport"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Connection churn benchmark for the sharded connection cache",
		Long:    "Measures emplace/remove latency of the per-shard connection caches under concurrent load and reports how evenly the affinity resolver places nodes over the shards.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}

	perfShards  = 8
	perfNodes   = 1000
	perfThreads = 10
	perfOps     = 100000
	perfCSV     = ""
)

func init() {
	// add flags
	key := "shards"
	PerfCmd.Flags().Int(key, 8, cmdUtil.WrapString("Number of shards to distribute the connections over"))
	key = "nodes"
	PerfCmd.Flags().Int(key, 1000, cmdUtil.WrapString("How many distinct peer node ids to churn"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, cmdUtil.WrapString("Number of concurrent workers issuing cache mutations"))
	key = "ops"
	PerfCmd.Flags().Int(key, 100000, cmdUtil.WrapString("Total number of emplace+remove pairs to perform"))
	key = "csv"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfShards = viper.GetInt("shards")
	perfNodes = viper.GetInt("nodes")
	perfThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfCSV = viper.GetString("csv")

	return nil
}

// noopTransport stands in for a real peer connection so the benchmark
// measures the cache layer, not the network
type noopTransport struct{}

func (noopTransport) Send(uint64, []byte) ([]byte, error) { return nil, nil }
func (noopTransport) Stop() error                         { return nil }

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers("warn")

	h := host.NewHost(uint64(perfShards), func(common.ClientConfig) transport.IClientTransport {
		return noopTransport{}
	})

	registry := gometrics.NewRegistry()
	emplaceTimer := gometrics.GetOrRegisterTimer("emplace", registry)
	removeTimer := gometrics.GetOrRegisterTimer("remove", registry)

	cfg := common.ClientConfig{Endpoint: "benchmark"}
	ctx := context.Background()

	fmt.Printf("churning %d ops over %d nodes on %d shards with %d workers\n",
		perfOps, perfNodes, perfShards, perfThreads)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(perfThreads)
	for w := 0; w < perfThreads; w++ {
		go func(worker int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(int64(worker)))
			for i := 0; i < perfOps/perfThreads; i++ {
				n := common.NodeID(rng.Intn(perfNodes))

				emplaceTimer.Time(func() {
					if err := h.EmplaceNode(ctx, n, cfg); err != nil {
						panic(err)
					}
				})
				removeTimer.Time(func() {
					if err := h.RemoveNode(ctx, n); err != nil {
						panic(err)
					}
				})
			}
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)

	// report latency
	printTimer := func(name string, t gometrics.Timer) {
		fmt.Printf("%-8s count=%d mean=%s p95=%s p99=%s\n",
			name,
			t.Count(),
			time.Duration(int64(t.Mean())),
			time.Duration(int64(t.Percentile(0.95))),
			time.Duration(int64(t.Percentile(0.99))),
		)
	}
	fmt.Printf("\ntotal: %d ops in %s (%.0f ops/s)\n", 2*emplaceTimer.Count(), elapsed,
		float64(2*emplaceTimer.Count())/elapsed.Seconds())
	printTimer("emplace", emplaceTimer)
	printTimer("remove", removeTimer)

	// report placement balance
	nodes := make([]common.NodeID, perfNodes)
	for i := range nodes {
		nodes[i] = common.NodeID(i)
	}
	placement := affinity.NewPlacementStats(h.Resolver(), nodes)
	fmt.Printf("\nplacement: quality=%.3f mean=%.1f min=%.0f max=%.0f stddev=%.2f\n",
		placement.DistributionQuality, placement.Mean, placement.Min, placement.Max, placement.StdDeviation)

	if perfCSV != "" {
		if err := writeCSV(perfCSV, emplaceTimer, removeTimer, placement); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", perfCSV)
	}

	return h.Stop()
}

// writeCSV saves the benchmark results to a CSV file
func writeCSV(path string, emplaceTimer, removeTimer gometrics.Timer, placement affinity.PlacementStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"metric", "count", "mean_ns", "p95_ns", "p99_ns"}); err != nil {
		return err
	}

	rows := map[string]gometrics.Timer{
		"emplace": emplaceTimer,
		"remove":  removeTimer,
	}
	for name, t := range rows {
		err := w.Write([]string{
			name,
			strconv.FormatInt(t.Count(), 10),
			strconv.FormatFloat(t.Mean(), 'f', 0, 64),
			strconv.FormatFloat(t.Percentile(0.95), 'f', 0, 64),
			strconv.FormatFloat(t.Percentile(0.99), 'f', 0, 64),
		})
		if err != nil {
			return err
		}
	}

	return w.Write([]string{
		"placement_quality",
		strconv.FormatFloat(placement.DistributionQuality, 'f', 3, 64),
		"", "", "",
	})
}
