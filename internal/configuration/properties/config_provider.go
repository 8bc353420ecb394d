package properties

type ConfigProvider interface {
	GetApplication() *ApplicationConfigProperties
	GetStorage() *StorageConfigProperties
	GetRaft() *RaftConfigProperties
	GetTransport() *TransportConfigProperties
	GetMetrics() *MetricsConfigProperties
	GetIdentity() *IdentityConfigProperties
}

type AppConfigProvider struct {
	config *Config
}

func NewProvider(cfg *Config) *AppConfigProvider {
	return &AppConfigProvider{config: cfg}
}

func (c *AppConfigProvider) GetApplication() *ApplicationConfigProperties {
	return &c.config.Application
}

func (c *AppConfigProvider) GetStorage() *StorageConfigProperties {
	return &c.config.Storage
}

func (c *AppConfigProvider) GetRaft() *RaftConfigProperties {
	return &c.config.Raft
}

func (c *AppConfigProvider) GetTransport() *TransportConfigProperties {
	return &c.config.Transport
}

func (c *AppConfigProvider) GetMetrics() *MetricsConfigProperties {
	return &c.config.Metrics
}

func (c *AppConfigProvider) GetIdentity() *IdentityConfigProperties {
	return &c.config.Identity
}
