package vars

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/Manu343726/framevars/pkg/utils"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	labelsFunction string
	labelsClear    bool
)

var labelsCmd = &cobra.Command{
	Use:   "labels <snapshot>",
	Short: "List or clear the slot names stored for the functions of a snapshot",
	Long: `Slot renames are kept in the labels database (see --labels). This command
lists them per function of the snapshot, or removes them with --clear.

Example:
  framevars vars labels crash.yaml --labels ~/.framevars/labels
  framevars vars labels crash.yaml --labels ~/.framevars/labels --function main --clear`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLabels(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	VarsCmd.AddCommand(labelsCmd)
	labelsCmd.Flags().StringVarP(&labelsFunction, "function", "f", "", "Only this function")
	labelsCmd.Flags().BoolVar(&labelsClear, "clear", false, "Remove the labels instead of listing them")
}

func runLabels(w io.Writer, path string) error {
	s, err := openSession(path)
	if err != nil {
		return err
	}
	defer s.Close()

	a := s.target.Arch()
	functions := s.target.Functions()
	if labelsFunction != "" {
		function, ok := lo.Find(functions, func(f target.Function) bool { return f.Name == labelsFunction })
		if !ok {
			return utils.MakeError(target.ErrNoFunction, "'%s'", labelsFunction)
		}
		functions = []target.Function{function}
	}

	total := 0
	for _, function := range functions {
		stored, err := s.labels.List(function.Start)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			continue
		}
		total += len(stored)

		if labelsClear {
			if err := s.labels.Clear(function.Start); err != nil {
				return err
			}
			continue
		}

		slots := make([]frame.Slot, len(stored))
		for i, label := range stored {
			reg, err := a.Lookup(label.Register)
			if err != nil {
				return err
			}
			slots[i] = frame.Slot{Register: reg.Index, Displacement: label.Displacement}
		}

		// same order as the frame rows
		order := lo.Range(len(stored))
		slices.SortStableFunc(order, func(x, y int) int {
			if c := cmp.Compare(slots[x].Register, slots[y].Register); c != 0 {
				return c
			}
			return cmp.Compare(slots[y].Displacement, slots[x].Displacement)
		})

		fmt.Fprintf(w, "%s [%s, %s)\n", colorFunc.Sprint(function.Name),
			a.FormatPointer(function.Start), a.FormatPointer(function.End))
		for _, i := range order {
			label, slot := stored[i], slots[i]
			fmt.Fprintf(w, "  %-12s %-10s %s\n",
				colorReg.Sprint(frame.SlotExpression(a, slot, s.analyzer.Presentation())),
				colorHiBlack.Sprint(frame.SlotName(a, slot)),
				colorValue.Sprint(label.Name))
		}
	}

	switch {
	case labelsClear:
		colorSuccess.Fprintf(w, "Removed %d labels.\n", total)
	case total == 0:
		colorHiBlack.Fprintln(w, "No labels stored.")
	}
	return nil
}
