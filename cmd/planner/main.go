// Command planner runs the longitudinal driving planner as a standalone
// process, driven by an in-process simulator feeding model/live20/map/lat-
// control messages, since no real upstream vision/radar/map stack is
// available to connect to in this environment.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/doublecapcrimpin/openpilot/internal/config"
	"github.com/doublecapcrimpin/openpilot/internal/longmpc"
	"github.com/doublecapcrimpin/openpilot/internal/planner"
	"github.com/doublecapcrimpin/openpilot/internal/ptypes"
	"github.com/doublecapcrimpin/openpilot/internal/telemetry"
)

var (
	dbPathFlag = flag.String("db-path", "planner.db", "path to sqlite telemetry DB file")
	listenFlag = flag.String("listen", ":8090", "HTTP listen address for the debug dashboard")
	configFlag = flag.String("config", config.DefaultConfigPath, "path to JSON tuning configuration file")
	paramsFlag = flag.String("params-file", "", "path to a key=value param store file (LimitSetSpeed, SpeedLimitOffset)")
	cruiseFlag = flag.Float64("cruise-setpoint", 25.0, "simulated driver cruise setpoint, m/s")
	opsLogFlag = flag.Bool("verbose", false, "enable ops/diag log output to stderr")
)

func main() {
	flag.Parse()

	if *opsLogFlag {
		telemetry.SetLogWriters(logWriter{}, logWriter{}, nil)
	}

	tuning, err := config.LoadTuningConfig(*configFlag)
	if err != nil {
		log.Printf("using default tuning config: %v", err)
		tuning = config.EmptyTuningConfig()
	}

	var params config.ParamStore = config.NewFileParamStore(*paramsFlag)
	if *paramsFlag != "" {
		if fp, ok := params.(*config.FileParamStore); ok {
			if err := fp.Reload(); err != nil {
				log.Printf("param store reload: %v", err)
			}
		}
	}

	store, err := telemetry.OpenStore(*dbPathFlag)
	if err != nil {
		log.Fatalf("open telemetry store: %v", err)
	}
	defer store.Close()

	sessionID := uuid.NewString()
	log.Printf("planner session %s starting", sessionID)

	src := planner.NewChannelSource()

	ctlState := planner.LongCtrlPID
	var ctlMu sync.Mutex
	longCtrlState := func() planner.LongCtrlState {
		ctlMu.Lock()
		defer ctlMu.Unlock()
		return ctlState
	}

	cfg := planner.Config{
		Vehicle:        ptypes.VehicleParams{SteerRatio: 15.3, Wheelbase: 2.7, StartAccel: 0},
		Params:         params,
		Tuning:         tuning,
		CruiseSetpoint: func() float64 { return *cruiseFlag },
		LongCtrlState:  longCtrlState,
		ForceSlowDecel: func() bool { return false },
		FCWEnabled:     tuning.GetFCWEnabled(),
		SessionID:      sessionID,
	}

	p := planner.New(cfg, longmpc.NewSimSolver(), longmpc.NewSimSolver(), src, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSimulator(ctx, src, *cruiseFlag)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := http.NewServeMux()
		mux.HandleFunc("/dashboard", store.DashboardHandler(sessionID, 500))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		})
		server := &http.Server{Addr: *listenFlag, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		log.Printf("dashboard listening on %s", *listenFlag)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("dashboard server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTickLoop(ctx, p)
	}()

	wg.Wait()
	log.Printf("planner session %s stopped", sessionID)
}

// runTickLoop drives Tick at ~20Hz, matching the upstream radar/vision
// cadence.
func runTickLoop(ctx context.Context, p *planner.Planner) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	ego := ptypes.EgoState{VEgo: 0}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			plan := p.Tick(now, ego)
			// Feed the published target back in as next tick's ego speed,
			// the way a real low-level controller tracking v_target would.
			ego.VEgo = math.Max(0, plan.VTarget)
			ego.AEgo = plan.ATarget
			if plan.FCW {
				telemetry.Opsf("fcw fired at v_ego=%.2f", ego.VEgo)
			}
		}
	}
}

// runSimulator feeds synthetic model/live20/map messages into src at their
// native cadences (20Hz model/radar, 1Hz map), standing in for the real
// vision/radar/map stack this process would normally subscribe to.
func runSimulator(ctx context.Context, src *planner.ChannelSource, cruiseSetpoint float64) {
	modelTicker := time.NewTicker(50 * time.Millisecond)
	mapTicker := time.NewTicker(1 * time.Second)
	defer modelTicker.Stop()
	defer mapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-modelTicker.C:
			select {
			case src.Model <- planner.ModelMsg{LaneWidth: 3.7}:
			default:
			}
			select {
			case src.Live20 <- planner.Live20Msg{}:
			default:
			}
		case <-mapTicker.C:
			select {
			case src.MapData <- ptypes.MapSnapshot{Valid: true}:
			default:
			}
		}
	}
}

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Print(string(p))
	return len(p), nil
}
