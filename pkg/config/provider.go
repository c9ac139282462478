package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSimulation() (*SimulationData, error)
	GetAnalyses() ([]AnalysisData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Simulation  SimulationData   `json:"simulation"`
	Analyses    []AnalysisData   `json:"analyses"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// SimulationData drives the synthetic host case
type SimulationData struct {
	StartTime  float64  `json:"startTime"`
	EndTime    float64  `json:"endTime"`
	DeltaT     float64  `json:"deltaT"`
	Processors int      `json:"processors,omitempty"`
	Case       CaseData `json:"case"`
}

// CaseData describes the box mesh and the analytic flow through it
type CaseData struct {
	Origin            [3]float64 `json:"origin"`
	Size              [3]float64 `json:"size"`
	Cells             [3]int     `json:"cells"`
	WallPatch         string     `json:"wallPatch,omitempty"`
	Zone              string     `json:"zone,omitempty"`
	ZoneMin           [3]float64 `json:"zoneMin,omitempty"`
	ZoneMax           [3]float64 `json:"zoneMax,omitempty"`
	Density           float64    `json:"density,omitempty"`
	MeanPressure      float64    `json:"meanPressure,omitempty"`
	PressureAmplitude float64    `json:"pressureAmplitude"`
	Frequency         float64    `json:"frequency"`
	MeanVelocity      [3]float64 `json:"meanVelocity"`
	VelocityAmplitude float64    `json:"velocityAmplitude,omitempty"`
	Kinematic         bool       `json:"kinematic,omitempty"`
}

// AnalysisData holds one Curle analysis
type AnalysisData struct {
	Name            string         `json:"name"`
	Log             bool           `json:"log,omitempty"`
	Patches         []string       `json:"patches"`
	CellZone        string         `json:"cellZone,omitempty"`
	RhoRef          float64        `json:"rhoRef"`
	CRef            float64        `json:"cRef"`
	PName           string         `json:"pName,omitempty"`
	UName           string         `json:"UName,omitempty"`
	PRef            float64        `json:"pRef,omitempty"`
	MinDistance     float64        `json:"minDistance,omitempty"`
	NearField       bool           `json:"nearField,omitempty"`
	WriteAggregates bool           `json:"writeAggregates,omitempty"`
	Observers       []ObserverData `json:"observers"`
}

// ObserverData is a named microphone position
type ObserverData struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
}

// StorageData holds the configuration for various storage backends
type StorageData struct {
	File        *FileData        `json:"file,omitempty"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	MsgPack     *MsgPackData     `json:"msgpack,omitempty"`
	Memory      *MemoryData      `json:"memory,omitempty"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
}

// Storage backend configuration structs
type FileData struct {
	Directory string `json:"directory"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

type MsgPackData struct {
	Directory string `json:"directory"`
}

type MemoryData struct {
	Capacity int `json:"capacity,omitempty"`
}

// RESTServerData configures the REST controller
type RESTServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}
