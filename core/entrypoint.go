package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

var ErrShutdown = errors.New("received shutdown signal")

func setupDebugging() {
	if state.DBG_debug {
		go func() {
			log.Println(http.ListenAndServe(state.DebugListenAddr, nil))
		}()
	}
}

func ReadNodeConfig(nodePath string) (*state.NodeCfg, error) {
	var nodeCfg state.NodeCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	nodeCfg.MIB = state.DefaultMIB()
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, err
	}
	return &nodeCfg, nil
}

// Bootstrap reads and validates the node config, then runs the station until it is stopped.
func Bootstrap(nodePath, logPath string, verbose bool) error {
	setupDebugging()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	nodeCfg, err := ReadNodeConfig(nodePath)
	if err != nil {
		return err
	}
	if logPath != "" {
		nodeCfg.LogPath = logPath
	}
	if err := state.NodeConfigValidator(nodeCfg); err != nil {
		return err
	}
	return Start(*nodeCfg, level, nodePath, nil)
}

func newLogger(ncfg state.NodeCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: ncfg.Id,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if ncfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(ncfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(ncfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs a station until it receives SIGINT/SIGTERM or a dispatch fails. When
// initState is set, it receives the state before the main loop starts.
func Start(ncfg state.NodeCfg, logLevel slog.Level, configPath string, initState **state.State) error {
	logger, err := newLogger(ncfg, logLevel)
	if err != nil {
		return err
	}
	s, dispatch := NewState(ncfg, logger, configPath)
	if initState != nil {
		*initState = s
	}

	s.Log.Info("init modules")
	err = initModules(s)
	if err != nil {
		Stop(s)
		return err
	}
	s.Log.Info("init modules complete")

	s.Log.Info("GeoNetworking station is up. To gracefully exit, send SIGINT or Ctrl+C.", "mid", s.Address.MID)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			s.Cancel(ErrShutdown)
		case <-s.Context.Done():
			return
		}
	}()

	return MainLoop(s, dispatch)
}

// NewState creates the state of a station and the receiving end of its dispatch channel.
func NewState(ncfg state.NodeCfg, logger *slog.Logger, configPath string) (*state.State, <-chan func(*state.State) error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(*state.State) error, state.DispatchBufferSize)
	s := &state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         ncfg,
			Log:             logger,
			ConfigPath:      configPath,
		},
	}
	return s, dispatch
}

func initModules(s *state.State) error {
	var modules []state.Module
	modules = append(modules, &Trace{})
	modules = append(modules, &GeoNet{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %T: %w", module, err)
		}
	}
	return nil
}

// MainLoop runs dispatched functions one at a time until the station is cancelled. A
// dispatch error is fatal.
func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.SlowDispatchThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(s.Context)
	s.Log.Info("stopped main loop", "reason", cause)
	Stop(s)
	if cause == nil || errors.Is(cause, context.Canceled) || errors.Is(cause, ErrShutdown) {
		return nil
	}
	return cause
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
