package vars

import (
	"log/slog"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/labels"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// VarsCmd represents the vars command
var VarsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Frame slot recovery over process snapshots",
}

// LoadSettings turns the configuration into an analyzer configuration for
// the given architecture
func LoadSettings(a *arch.Arch) (frame.Config, error) {
	config := frame.DefaultConfig(a)
	config.Logger = slog.Default()

	if names := viper.GetStringSlice("registers"); len(names) > 0 {
		mask, err := frame.ParseRegisterMask(a, names)
		if err != nil {
			return frame.Config{}, err
		}
		config.Registers = mask
	}

	if viper.IsSet("disassembler.hex_prefix") {
		config.Presentation.HexPrefix = viper.GetBool("disassembler.hex_prefix")
	}
	config.Presentation.MemorySpaces = viper.GetBool("disassembler.memory_spaces")

	return config, nil
}

// loadTarget loads a snapshot, letting the arch setting override the one it
// declares
func loadTarget(path string) (*target.Target, error) {
	snapshot, err := target.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	if name := viper.GetString("arch"); name != "" {
		snapshot.Arch = name
	}

	return target.New(snapshot)
}

// session bundles everything a subcommand needs to inspect a snapshot
type session struct {
	target   *target.Target
	backend  *debugger.Backend
	analyzer *frame.Analyzer
	labels   *labels.Store
}

func openSession(path string) (*session, error) {
	t, err := loadTarget(path)
	if err != nil {
		return nil, err
	}

	config, err := LoadSettings(t.Arch())
	if err != nil {
		return nil, err
	}

	store, err := labels.Open(viper.GetString("labels.path"))
	if err != nil {
		return nil, err
	}

	backend := debugger.NewBackend(t, slog.Default())
	return &session{
		target:   t,
		backend:  backend,
		analyzer: frame.NewAnalyzer(config, backend.Collaborators(store)),
		labels:   store,
	}, nil
}

func (s *session) Close() error {
	return s.labels.Close()
}

// nextTrackedMask moves a single tracked register to the next one of the
// register set, wrapping around
func nextTrackedMask(a *arch.Arch, mask frame.RegisterMask) frame.RegisterMask {
	current := -1
	for _, reg := range a.Registers {
		if mask.Has(reg.Index) {
			current = reg.Index
			break
		}
	}

	return frame.MaskOf((current + 1) % len(a.Registers))
}
