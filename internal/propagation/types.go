package propagation

// PropConfig holds propagation settings.
type PropConfig struct {
	Workers int    // worker pool size (default: runtime.NumCPU())
	Model   string // capability name: "sgp4" or "kepler"
}
