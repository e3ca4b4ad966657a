package tessera

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type Config struct {
	RenderThreads int                 `hcl:"render_threads,optional"`
	IOThreads     int                 `hcl:"io_threads,optional"`
	Output        string              `hcl:"output,optional"`
	Data          string              `hcl:"data,optional"`
	ClientJar     string              `hcl:"client_jar,optional"`
	Version       string              `hcl:"version,optional"`
	MetricsAddr   string              `hcl:"metrics_addr,optional"`
	Worlds        []*WorldConfigBlock `hcl:"world,block"`
}

type WorldConfigBlock struct {
	Name      string `hcl:"name,label"`
	Path      string `hcl:"path"`
	RegionDir string `hcl:"region_dir,optional"`
	MinY      *int   `hcl:"min_y,optional"`

	Layers              []string `hcl:"layers,optional"`
	ZoomLevels          *int     `hcl:"zoom_levels,optional"`
	Heightmap           string   `hcl:"heightmap,optional"`
	TranslucentFluids   *bool    `hcl:"translucent_fluids,optional"`
	TranslucentGlass    *bool    `hcl:"translucent_glass,optional"`
	BackgroundInterval  int      `hcl:"background_interval,optional"`
	BackgroundMaxChunks int      `hcl:"background_max_chunks,optional"`
}

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"cpus": cty.NumberIntVal(int64(runtime.NumCPU())),
		},
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = "web"
	}
	if c.Data == "" {
		c.Data = "data"
	}
	for _, w := range c.Worlds {
		if len(w.Layers) == 0 {
			w.Layers = []string{"basic"}
		}
		if w.ZoomLevels == nil {
			zoom := 3
			w.ZoomLevels = &zoom
		}
		if w.Heightmap == "" {
			w.Heightmap = "modern"
		}
		if w.TranslucentFluids == nil {
			fluids := true
			w.TranslucentFluids = &fluids
		}
		if w.TranslucentGlass == nil {
			glass := true
			w.TranslucentGlass = &glass
		}
		if w.BackgroundInterval <= 0 {
			w.BackgroundInterval = 5
		}
		if w.BackgroundMaxChunks <= 0 {
			w.BackgroundMaxChunks = 1024
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{})
	for _, w := range c.Worlds {
		if _, ok := seen[w.Name]; ok {
			return fmt.Errorf("world %q is defined twice", w.Name)
		}
		seen[w.Name] = struct{}{}

		if w.Path == "" {
			return fmt.Errorf("world %q has no path", w.Name)
		}
		for _, layer := range w.Layers {
			if _, err := LookupLayer(layer); err != nil {
				return fmt.Errorf("world %q: %w", w.Name, err)
			}
		}
		if _, err := LookupShader(w.Heightmap); err != nil {
			return fmt.Errorf("world %q: %w", w.Name, err)
		}
	}
	return nil
}

// World returns the block of the named world.
func (c *Config) World(name string) (*WorldConfigBlock, bool) {
	for _, w := range c.Worlds {
		if w.Name == name {
			return w, true
		}
	}
	return nil, false
}

// Options converts the block into render options.
func (w *WorldConfigBlock) Options() WorldOptions {
	opts := WorldOptions{
		Layers:              w.Layers,
		Heightmap:           w.Heightmap,
		BackgroundInterval:  time.Duration(w.BackgroundInterval) * time.Second,
		BackgroundMaxChunks: w.BackgroundMaxChunks,
	}
	if w.ZoomLevels != nil {
		opts.ZoomLevels = *w.ZoomLevels
	}
	if w.TranslucentFluids != nil {
		opts.TranslucentFluids = *w.TranslucentFluids
	}
	if w.TranslucentGlass != nil {
		opts.TranslucentGlass = *w.TranslucentGlass
	}
	return opts
}
