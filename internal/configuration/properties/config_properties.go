package properties

import "time"

type ApplicationConfigProperties struct {
	Profile         string `yaml:"profile"`
	LogLevel        string `yaml:"log-level"`
	ContractName    string `yaml:"contract-name"`
	ContractVersion string `yaml:"contract-version"`
	// AllowAdminClear permits RotateAdmin with no new administrator. Once
	// cleared, no caller passes the admin check again.
	AllowAdminClear bool `yaml:"allow-admin-clear"`
}

type WriteAheadLogProperties struct {
	NoSync    bool   `yaml:"no-sync"`
	SnapCount uint64 `yaml:"snap-count"`
}

type StorageConfigProperties struct {
	DataDir  string                  `yaml:"data-dir"`
	InMemory bool                    `yaml:"in-memory"`
	Wal      WriteAheadLogProperties `yaml:"wal"`
}

type RaftConfigProperties struct {
	NodeId         uint64 `yaml:"node-id"`
	TickInterval   uint64 `yaml:"tick-interval"`
	ElectionTick   int    `yaml:"election-tick"`
	HeartbeatTick  int    `yaml:"heartbeat-tick"`
	MaxSizePerMsg  uint64 `yaml:"max-size-per-msg"`
	MaxInflight    int    `yaml:"max-inflight"`
	ProposeTimeout uint64 `yaml:"propose-timeout"`
}

type TransportConfigProperties struct {
	Network              string `yaml:"network"`
	Address              string `yaml:"address"`
	Port                 string `yaml:"port"`
	Timeout              uint64 `yaml:"timeout"`
	MaxConcurrentStreams uint32 `yaml:"max-concurrent-streams"`
}

type MetricsConfigProperties struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type IdentityConfigProperties struct {
	MinLength int `yaml:"min-length"`
	MaxLength int `yaml:"max-length"`
}

type Config struct {
	Application ApplicationConfigProperties `yaml:"app"`
	Storage     StorageConfigProperties     `yaml:"storage"`
	Raft        RaftConfigProperties        `yaml:"raft"`
	Transport   TransportConfigProperties   `yaml:"transport"`
	Metrics     MetricsConfigProperties     `yaml:"metrics"`
	Identity    IdentityConfigProperties    `yaml:"identity"`
}

func (c *TransportConfigProperties) ListenAddr() string {
	return c.Address + ":" + c.Port
}

func (c *TransportConfigProperties) RequestTimeout() time.Duration {
	if c.Timeout == 0 {
		return time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c *RaftConfigProperties) TickDuration() time.Duration {
	if c.TickInterval == 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.TickInterval) * time.Millisecond
}

func (c *RaftConfigProperties) ProposeDuration() time.Duration {
	if c.ProposeTimeout == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ProposeTimeout) * time.Millisecond
}
