// Command loadtest нагружает gRPC API сервиса заказов сценариями создания
// и чтения заказов и печатает сводку по латентности и кодам ответов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joeltadeu/pact-shopping-api/internal/transport/grpcsvc"
)

const idempotencyHeader = "idempotency-key"

type loadMode string

const (
	modeCreate    loadMode = "create"
	modeCreateGet loadMode = "create-get"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	customerID  int64
	productID   int64
	quantity    int
	idempotent  bool
	outputPath  string
}

// orderClient: подмножество grpcsvc.Client, нужное сценариям.
type orderClient interface {
	CreateOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

func parseConfig(args []string) (config, error) {
	var (
		cfg  config
		mode string
	)
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration acts as an upper bound when set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&mode, "mode", string(modeCreate), "load mode: create | create-get")
	fs.Int64Var(&cfg.customerID, "customer-id", 10, "customer placing the orders")
	fs.Int64Var(&cfg.productID, "product-id", 10, "product ordered in every scenario")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity of the product per order")
	fs.BoolVar(&cfg.idempotent, "idempotent", true, "send an idempotency-key with every create")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	switch loadMode(strings.TrimSpace(mode)) {
	case modeCreate:
		cfg.mode = modeCreate
	case modeCreateGet:
		cfg.mode = modeCreateGet
	default:
		return cfg, fmt.Errorf("unsupported mode: %s", mode)
	}

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.customerID <= 0 || cfg.productID <= 0:
		return cfg, errors.New("customer-id and product-id must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fail("invalid config: %v", err)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			fail("failed to create grpc client connection: %v", dialErr)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := execute(context.Background(), cfg, clients)

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			fail("failed to write report: %v", err)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// execute прогоняет сценарии пулом воркеров и возвращает сводку.
func execute(ctx context.Context, cfg config, clients []orderClient) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	group, groupCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < cfg.concurrency; worker++ {
		client := clients[worker%len(clients)]
		group.Go(func() error {
			for idx := range jobs {
				_ = runScenario(groupCtx, client, cfg, idx, runID, col)
			}
			return nil
		})
	}

	dispatchJobs(jobs, cfg)
	_ = group.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()
	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runScenario(ctx context.Context, client orderClient, cfg config, index int, runID string, col *collector) error {
	start := time.Now()
	code := codes.OK
	defer func() {
		col.record(scenarioKey, time.Since(start), code)
	}()

	req, err := structpb.NewStruct(map[string]any{
		"customer_id": cfg.customerID,
		"items": []any{
			map[string]any{"id": cfg.productID, "quantity": cfg.quantity},
		},
	})
	if err != nil {
		code = codes.Internal
		return err
	}

	key := ""
	if cfg.idempotent {
		key = fmt.Sprintf("lt-create-%s-%d", runID, index)
	}
	created, err := call(ctx, col, grpcsvc.MethodCreateOrder, cfg.timeout, key, func(ctx context.Context) (*structpb.Struct, error) {
		return client.CreateOrder(ctx, req)
	})
	if err != nil {
		code = status.Code(err)
		return err
	}
	if cfg.mode == modeCreate {
		return nil
	}

	orderID, ok := created.GetFields()["id"]
	if !ok {
		code = codes.Internal
		return errors.New("create response returned no order id")
	}
	getReq := &structpb.Struct{Fields: map[string]*structpb.Value{
		"customer_id": structpb.NewNumberValue(float64(cfg.customerID)),
		"order_id":    orderID,
	}}
	if _, err := call(ctx, col, grpcsvc.MethodGetOrder, cfg.timeout, "", func(ctx context.Context) (*structpb.Struct, error) {
		return client.GetOrder(ctx, getReq)
	}); err != nil {
		code = status.Code(err)
		return err
	}
	return nil
}

func call(ctx context.Context, col *collector, method string, timeout time.Duration, key string,
	fn func(ctx context.Context) (*structpb.Struct, error),
) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)
	}

	start := time.Now()
	resp, err := fn(ctx)
	col.record(method, time.Since(start), status.Code(err))
	return resp, err
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	s := result.ScenarioLatencyMs
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		s.Min, s.Avg, s.P50, s.P95, s.P99, s.Max)

	names := make([]string, 0, len(result.Calls))
	for name := range result.Calls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Calls[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
