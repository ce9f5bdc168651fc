package tools

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/Manu343726/framevars/pkg/utils"
	"github.com/spf13/cobra"
)

var supportedModules = map[string]func() string{
	"snapshot.format":       func() string { return target.FormatReference },
	"snapshot.encode_types": encodeTypesDoc,
	"registers.x86":         func() string { return registersDoc(arch.X86) },
	"registers.x64":         func() string { return registersDoc(arch.X64) },
}

func moduleNames() []string {
	names := utils.Keys(supportedModules)
	slices.Sort(names)
	return names
}

// registersDoc lists the registers slots can be tracked for
func registersDoc(a *arch.Arch) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %d bit, %d byte pointers\n", a.Name, a.Mode, a.PointerSize)
	for _, reg := range a.Registers {
		fmt.Fprintf(&b, "  %2d  %-4s %s\n", reg.Index, reg.Name, reg.Description)
	}
	fmt.Fprintf(&b, "Instruction pointer: %s, stack pointer: %s, flags: %s\n", a.InstructionPointer, a.StackPointer, a.Flags)
	fmt.Fprintf(&b, "Frame pointer slots are named Local<n>/Arg<n>, other registers <REG>_<HEX> and _<REG>_<HEX>\n")

	return b.String()
}

func encodeTypesDoc() string {
	var b strings.Builder

	b.WriteString("Data types for the 'data' section of a snapshot:\n")
	for _, name := range target.EncodeTypeNames() {
		t := target.ParseEncodeType(name)
		switch {
		case t.IsCode():
			fmt.Fprintf(&b, "  %-8s instructions\n", name)
		case t.Size() == 0:
			fmt.Fprintf(&b, "  %-8s explicit size\n", name)
		default:
			fmt.Fprintf(&b, "  %-8s %d bytes\n", name, t.Size())
		}
	}
	b.WriteString("Unknown types are treated as code.\n")

	return b.String()
}

var docsCmd = &cobra.Command{
	Use:   "docs module",
	Short: "Show framevars documentation",
	Long: `Dumps the documentation of the specified framevars module.
By default the tool dumps the documentation to stdout, but it can be redirected to a file using the --output flag.

Supported modules:
` + strings.Join(utils.Map(moduleNames(), func(module string) string { return "  " + module }), "\n"),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.ExactArgs(1)),
	ValidArgs: moduleNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := supportedModules[args[0]]()

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile == "" {
			fmt.Fprintln(cmd.OutOrStdout(), doc)
			return nil
		}

		file, err := os.Create(outputFile)
		if err != nil {
			return utils.MakeError(err, "creating '%s'", outputFile)
		}
		defer file.Close()

		_, err = fmt.Fprintln(file, doc)
		return err
	},
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, the documentation is dumped to stdout.")
}
