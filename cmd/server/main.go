package main

import (
	"context"
	"flag"
	"log"
	"math/bits"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"matchd/api/grpcserver"
	"matchd/api/ws"
	"matchd/domain/engine"
	"matchd/infra/kafka"
	"matchd/infra/metrics"
	"matchd/infra/queue"
	"matchd/jobs/broadcaster"
	"matchd/network"
	"matchd/protocol"
	"matchd/service"
)

func main() {
	var (
		tcpAddr    = flag.String("tcp", ":1234", "TCP listen address (empty to disable)")
		udpAddr    = flag.String("udp", "", "UDP listen address (empty to disable)")
		httpAddr   = flag.String("http", "", "HTTP address for /metrics and /ws (empty to disable)")
		grpcAddr   = flag.String("grpc", "", "gRPC admin address (empty to disable)")
		mcastGroup = flag.String("multicast", "", "UDP multicast group for market data (empty to disable)")

		partitions = flag.Int("partitions", protocol.NumPartitions, "matching partitions (1 or 2)")
		poolSize   = flag.Int("pool", engine.DefaultPoolCapacity, "order pool capacity per partition")
		queueSize  = flag.Int("queue", 1<<16, "ring size per queue (power of two)")
		maxSymbols = flag.Int("symbols", engine.DefaultMaxSymbols, "symbol cap per partition")
		maxLevels  = flag.Int("levels", 0, "price level cap per book (0 for default)")

		ackOnReject = flag.Bool("ack-on-reject", false, "ack orders rejected by pool exhaustion")
		spinLimit   = flag.Int("spin", service.DefaultSpinLimit, "empty polls before the processors sleep")
		idleSleep   = flag.Duration("idle-sleep", service.DefaultIdleSleep, "processor sleep once spinning stops")

		kafkaBrokers   = flag.String("kafka-brokers", "", "comma-separated Kafka brokers (empty to disable)")
		kafkaFeedTopic = flag.String("kafka-feed-topic", "matchd.marketdata", "market data topic")
		kafkaOrders    = flag.String("kafka-orders-topic", "", "order entry topic (empty to disable the gateway)")
		kafkaResponses = flag.String("kafka-responses-topic", "matchd.responses", "gateway response topic")
		kafkaGroup     = flag.String("kafka-group", "matchd", "gateway consumer group")
	)
	flag.Parse()

	if *partitions < 1 || *partitions > protocol.NumPartitions {
		log.Fatalf("partitions must be 1 or %d", protocol.NumPartitions)
	}
	if bits.OnesCount(uint(*queueSize)) != 1 {
		log.Fatalf("queue size must be a power of two, got %d", *queueSize)
	}

	// ---------------- Queues and partitions ----------------

	inQueues := make([]*queue.SPSC[protocol.InputEnvelope], *partitions)
	outQueues := make([]*queue.SPSC[protocol.OutputEnvelope], *partitions)
	procs := make([]*service.Processor, *partitions)
	for i := 0; i < *partitions; i++ {
		inQueues[i] = queue.New[protocol.InputEnvelope](*queueSize)
		outQueues[i] = queue.New[protocol.OutputEnvelope](*queueSize)
		eng := engine.New(engine.Config{
			MaxSymbols:     *maxSymbols,
			MaxPriceLevels: *maxLevels,
			PoolCapacity:   *poolSize,
			AckOnReject:    *ackOnReject,
		})
		procs[i] = service.NewProcessor(i, inQueues[i], outQueues[i], eng,
			service.WithIdlePolicy(*spinLimit, *idleSleep))
	}

	registry := network.NewRegistry()
	ingress := network.NewIngress(inQueues)

	// ---------------- Market data taps ----------------

	var taps []network.Tap
	var mcast *network.Multicast
	if *mcastGroup != "" {
		m, err := network.NewMulticast(*mcastGroup)
		if err != nil {
			log.Fatalf("multicast init failed: %v", err)
		}
		mcast = m
		taps = append(taps, m)
	}

	var hub *ws.Hub
	if *httpAddr != "" {
		hub = ws.NewHub()
		taps = append(taps, hub)
	}

	var feed *broadcaster.Broadcaster
	if *kafkaBrokers != "" {
		brokers := strings.Split(*kafkaBrokers, ",")
		f, err := broadcaster.New(brokers, *kafkaFeedTopic)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		feed = f
		taps = append(taps, f)
	}

	router := network.NewOutputRouter(outQueues, registry, taps...)

	// ---------------- Transports ----------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *service.Processor) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		router.Run(ctx)
	}()

	if *tcpAddr != "" {
		srv := network.NewTCPServer(*tcpAddr, registry, ingress)
		if err := srv.Listen(); err != nil {
			log.Fatalf("tcp listen failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil {
				log.Printf("[tcp] serve: %v", err)
			}
		}()
	}

	if *udpAddr != "" {
		srv := network.NewUDPServer(*udpAddr, registry, ingress)
		if err := srv.Listen(); err != nil {
			log.Fatalf("udp listen failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil {
				log.Printf("[udp] serve: %v", err)
			}
		}()
	}

	// ---------------- Kafka ----------------

	if feed != nil {
		feed.Start(ctx)
	}

	var gateway *kafka.Gateway
	if *kafkaBrokers != "" && *kafkaOrders != "" {
		gateway = kafka.NewGateway(strings.Split(*kafkaBrokers, ","),
			*kafkaOrders, *kafkaResponses, *kafkaGroup, registry, ingress)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gateway.Run(ctx); err != nil {
				log.Printf("[kafka] gateway: %v", err)
			}
		}()
	}

	// ---------------- Admin and observability ----------------

	var admin *grpcserver.Server
	if *grpcAddr != "" {
		admin = grpcserver.New(func() map[string]any {
			return statsSnapshot(procs, ingress, registry)
		})
		go func() {
			if err := admin.Serve(*grpcAddr); err != nil {
				log.Printf("[grpc] serve: %v", err)
			}
		}()
	}

	var httpSrv *http.Server
	if *httpAddr != "" {
		m := metrics.New()
		for _, p := range procs {
			m.RegisterProcessor(p)
		}
		m.RegisterIngress(ingress)
		m.RegisterRegistry(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.Handle("/ws", hub)
		httpSrv = &http.Server{Addr: *httpAddr, Handler: mux}
		go func() {
			log.Printf("[http] listening on %s", *httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[http] serve: %v", err)
			}
		}()
	}

	log.Printf("[server] running with %d partition(s)", *partitions)
	<-ctx.Done()
	log.Printf("[server] shutting down")

	wg.Wait()

	if admin != nil {
		admin.Stop()
	}
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if hub != nil {
		hub.Shutdown(context.Background())
	}
	if gateway != nil {
		gateway.Close()
	}
	if feed != nil {
		feed.Close()
	}
	if mcast != nil {
		mcast.Close()
	}
	registry.CloseAll()

	printSummary(procs, ingress)
}

func statsSnapshot(procs []*service.Processor, ingress *network.Ingress, registry *network.Registry) map[string]any {
	snap := map[string]any{
		"clients":         registry.Len(),
		"ingress_routed":  ingress.Routed(),
		"ingress_dropped": ingress.Dropped(),
	}
	for _, p := range procs {
		st := p.Stats()
		eng := p.Engine()
		snap["partition_"+strconv.Itoa(p.ID())] = map[string]any{
			"messages":     st.Messages,
			"outputs":      st.Outputs,
			"trades":       st.Trades,
			"output_drops": st.OutputDrops,
			"books":        len(eng.Books()),
			"pool_in_use":  eng.Pool().InUse(),
			"pool_peak":    eng.Pool().Stats().PeakUsage,
		}
	}
	return snap
}

func printSummary(procs []*service.Processor, ingress *network.Ingress) {
	log.Printf("[server] ingress routed=%d dropped=%d", ingress.Routed(), ingress.Dropped())
	for _, p := range procs {
		st := p.Stats()
		log.Printf("[server] partition %d: messages=%d outputs=%d trades=%d drops=%d",
			p.ID(), st.Messages, st.Outputs, st.Trades, st.OutputDrops)
	}
}
