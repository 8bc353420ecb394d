package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"realestate/internal/configuration/properties"
	"realestate/internal/dispatcher"
	"realestate/internal/metrics"
	"realestate/internal/raft"
	"realestate/internal/registry"
	"realestate/internal/statemachine"
	"realestate/internal/storage"
	"realestate/internal/transport"
)

type Services struct {
	Storage      *storage.Service
	Contract     *registry.Contract
	StateMachine *statemachine.StateMachine
	Raft         *raft.Node
	Dispatcher   *dispatcher.Dispatcher
	Transport    *transport.Service
	Metrics      *metrics.Server
}

func NewServices(cfg properties.ConfigProvider) (*Services, error) {
	storeSvc, err := openStorage(cfg.GetStorage())
	if err != nil {
		return nil, err
	}

	contract := newContract(storeSvc, cfg)

	if err := contract.CheckInvariants(); err != nil {
		_ = storeSvc.Close()
		return nil, fmt.Errorf("stored registry state is inconsistent: %w", err)
	}

	sm := statemachine.New(contract)
	sm.OnApply(logEvents)

	node, err := raft.NewNode(cfg.GetRaft(), sm)
	if err != nil {
		_ = storeSvc.Close()
		return nil, err
	}

	disp := dispatcher.New(node, contract)

	services := &Services{
		Storage:      storeSvc,
		Contract:     contract,
		StateMachine: sm,
		Raft:         node,
		Dispatcher:   disp,
		Transport:    transport.NewTransportService(cfg.GetTransport(), disp),
	}

	if m := cfg.GetMetrics(); m.Enabled {
		services.Metrics = metrics.NewServer(m.Address)
	}

	return services, nil
}

func newContract(store registry.Store, cfg properties.ConfigProvider) *registry.Contract {
	app := cfg.GetApplication()
	identity := cfg.GetIdentity()
	return registry.New(store, registry.Options{
		Validator:       registry.NewDefaultValidator(identity.MinLength, identity.MaxLength),
		AllowAdminClear: app.AllowAdminClear,
		ContractName:    app.ContractName,
		ContractVersion: app.ContractVersion,
	})
}

func openStorage(sc *properties.StorageConfigProperties) (*storage.Service, error) {
	if sc.InMemory {
		slog.Warn("storage is in memory, registry state will not survive a restart")
		return storage.NewService(), nil
	}

	dir := filepath.Clean(sc.DataDir)
	svc, err := storage.Open(storage.Options{
		Dir:       dir,
		NoSync:    sc.Wal.NoSync,
		SnapCount: sc.Wal.SnapCount,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", dir, err)
	}
	return svc, nil
}

func (s *Services) Start() error {
	if s.Metrics != nil {
		if err := s.Metrics.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	s.Raft.Start()

	if _, err := s.Transport.StartServer(); err != nil {
		return fmt.Errorf("start transport server: %w", err)
	}
	return nil
}

// Stop shuts down in reverse start order so that no request reaches a
// stopped sequencer or a closed store.
func (s *Services) Stop() {
	s.Transport.Stop(5 * time.Second)
	s.Raft.Stop()
	if err := s.Storage.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
	if s.Metrics != nil {
		s.Metrics.Stop()
	}
}

func logEvents(cmd dispatcher.Command, resp *dispatcher.Response) {
	for _, ev := range resp.Events {
		attrs := make([]any, 0, 2*len(ev.Attributes)+4)
		attrs = append(attrs, "trace_id", cmd.TraceID, "caller", cmd.Caller)
		for _, a := range ev.Attributes {
			attrs = append(attrs, a.Key, a.Value)
		}
		slog.Info("event "+ev.Action, attrs...)
	}
}
