package vars

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	analyzeIP     string
	analyzeStop   int
	analyzeTree   bool
	analyzeJSON   bool
	analyzeLayout bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <snapshot>",
	Short: "Print the frame slots of the function a snapshot is stopped in",
	Long: `Loads a process snapshot, analyzes the function enclosing the instruction
pointer and prints its frame slots with their current values.

Example:
  framevars vars analyze crash.yaml
  framevars vars analyze crash.yaml --stop 2 --registers EBP,ESI
  framevars vars analyze crash.yaml --ip "main+6" --json
  framevars vars analyze crash.yaml --layout`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	VarsCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeIP, "ip", "", "Analyze at this address expression instead of the instruction pointer")
	analyzeCmd.Flags().IntVarP(&analyzeStop, "stop", "s", 0, "Replay the snapshot up to this stop first")
	analyzeCmd.Flags().BoolVar(&analyzeTree, "tree", false, "Group slots by base register")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print JSON")
	analyzeCmd.Flags().BoolVar(&analyzeLayout, "layout", false, "Draw the slots of each base register as a memory layout")
}

func runAnalyze(w io.Writer, path string) error {
	s, err := openSession(path)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.backend.Stop(analyzeStop); err != nil {
		return err
	}

	if analyzeIP != "" {
		ip, err := s.backend.EvalExpression(analyzeIP)
		if err != nil {
			return err
		}
		if err := s.backend.SetInstructionPointer(ip); err != nil {
			return err
		}
	}

	// the controller is only used to build the frame view here
	controller := debugger.NewController(s.backend, s.analyzer, nil, nil)
	result := controller.Variables()
	a := s.target.Arch()

	switch {
	case analyzeJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(makeJSONFrame(a, s.backend.InstructionPointer(), result))
	case analyzeTree, analyzeLayout:
		if !result.Analyzed {
			return utils.MakeError(frame.ErrNotStopped, "0x%X", s.backend.InstructionPointer())
		}
		if analyzeLayout {
			writeLayout(w, a, result)
		} else {
			fmt.Fprint(w, rowsTree(a, result).String())
		}
	default:
		writeRows(w, a, result)
	}

	return nil
}

// fatal prints an error the way every vars subcommand does and exits
func fatal(code int, format string, args ...any) {
	colorError.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}
