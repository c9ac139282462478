package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}
	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document. Unknown keys are rejected.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Simulation: SimulationData{
			StartTime:  yamlConfig.Simulation.StartTime,
			EndTime:    yamlConfig.Simulation.EndTime,
			DeltaT:     yamlConfig.Simulation.DeltaT,
			Processors: yamlConfig.Simulation.Processors,
			Case:       CaseData(yamlConfig.Simulation.Case),
		},
		Analyses:    make([]AnalysisData, len(yamlConfig.Analyses)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, a := range yamlConfig.Analyses {
		config.Analyses[i] = AnalysisData{
			Name:            a.Name,
			Log:             a.Log,
			Patches:         a.Patches,
			CellZone:        a.CellZone,
			RhoRef:          a.RhoRef,
			CRef:            a.CRef,
			PName:           a.PName,
			UName:           a.UName,
			PRef:            a.PRef,
			MinDistance:     a.MinDistance,
			NearField:       a.NearField,
			WriteAggregates: a.WriteAggregates,
			Observers:       []ObserverData(a.Observers),
		}
	}

	// Convert storage
	if yamlConfig.Storage.File != nil {
		config.Storage.File = &FileData{Directory: yamlConfig.Storage.File.Directory}
	}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString}
	}
	if yamlConfig.Storage.MsgPack != nil {
		config.Storage.MsgPack = &MsgPackData{Directory: yamlConfig.Storage.MsgPack.Directory}
	}
	if yamlConfig.Storage.Memory != nil {
		config.Storage.Memory = &MemoryData{Capacity: yamlConfig.Storage.Memory.Capacity}
	}

	// Convert controllers
	for i, c := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{Type: c.Type}
		if c.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				ListenAddr: c.RESTServer.ListenAddr,
				Port:       c.RESTServer.Port,
			}
		}
	}

	config.ApplyDefaults()
	return config, nil
}

// GetSimulation returns the host case configuration
func (y *YAMLProvider) GetSimulation() (*SimulationData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Simulation, nil
}

// GetAnalyses returns the analyses in document order
func (y *YAMLProvider) GetAnalyses() ([]AnalysisData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Analyses, nil
}

// GetStorageConfig returns storage configuration from YAML
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetControllers returns controller configurations from YAML
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs for unmarshaling

type ConfigYAML struct {
	Simulation  SimulationYAML   `yaml:"simulation"`
	Analyses    []AnalysisYAML   `yaml:"analyses"`
	Storage     StorageYAML      `yaml:"storage,omitempty"`
	Controllers []ControllerYAML `yaml:"controllers,omitempty"`
}

type SimulationYAML struct {
	StartTime  float64  `yaml:"startTime"`
	EndTime    float64  `yaml:"endTime"`
	DeltaT     float64  `yaml:"deltaT"`
	Processors int      `yaml:"processors,omitempty"`
	Case       CaseYAML `yaml:"case"`
}

type CaseYAML struct {
	Origin            [3]float64 `yaml:"origin"`
	Size              [3]float64 `yaml:"size"`
	Cells             [3]int     `yaml:"cells"`
	WallPatch         string     `yaml:"wallPatch,omitempty"`
	Zone              string     `yaml:"zone,omitempty"`
	ZoneMin           [3]float64 `yaml:"zoneMin,omitempty"`
	ZoneMax           [3]float64 `yaml:"zoneMax,omitempty"`
	Density           float64    `yaml:"density,omitempty"`
	MeanPressure      float64    `yaml:"meanPressure,omitempty"`
	PressureAmplitude float64    `yaml:"pressureAmplitude"`
	Frequency         float64    `yaml:"frequency"`
	MeanVelocity      [3]float64 `yaml:"meanVelocity"`
	VelocityAmplitude float64    `yaml:"velocityAmplitude,omitempty"`
	Kinematic         bool       `yaml:"kinematic,omitempty"`
}

type AnalysisYAML struct {
	Name            string        `yaml:"name"`
	Log             bool          `yaml:"log,omitempty"`
	Patches         []string      `yaml:"patches"`
	CellZone        string        `yaml:"cellZone,omitempty"`
	RhoRef          float64       `yaml:"rhoRef"`
	CRef            float64       `yaml:"cRef"`
	PName           string        `yaml:"pName,omitempty"`
	UName           string        `yaml:"UName,omitempty"`
	PRef            float64       `yaml:"pRef,omitempty"`
	MinDistance     float64       `yaml:"minDistance,omitempty"`
	NearField       bool          `yaml:"nearField,omitempty"`
	WriteAggregates bool          `yaml:"writeAggregates,omitempty"`
	Observers       ObserversYAML `yaml:"observers"`
}

// ObserversYAML decodes a mapping of observer name to position, keeping
// document order
type ObserversYAML []ObserverData

func (o *ObserversYAML) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: observers must be a mapping of name to position", value.Line)
	}

	out := make(ObserversYAML, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]

		var entry struct {
			Position [3]float64 `yaml:"position"`
		}
		if err := body.Decode(&entry); err != nil {
			return fmt.Errorf("observer %q: %w", key.Value, err)
		}
		out = append(out, ObserverData{Name: key.Value, Position: entry.Position})
	}

	*o = out
	return nil
}

type StorageYAML struct {
	File        *FileYAML        `yaml:"file,omitempty"`
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	MsgPack     *MsgPackYAML     `yaml:"msgpack,omitempty"`
	Memory      *MemoryYAML      `yaml:"memory,omitempty"`
}

type FileYAML struct {
	Directory string `yaml:"directory"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connectionString"`
}

type MsgPackYAML struct {
	Directory string `yaml:"directory"`
}

type MemoryYAML struct {
	Capacity int `yaml:"capacity,omitempty"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
}

type RESTServerYAML struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}
