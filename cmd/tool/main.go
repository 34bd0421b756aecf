package tool

import (
	"github.com/spf13/cobra"

	"github.com/chunklog/chunklog/cmd/tool/bench"
	"github.com/chunklog/chunklog/cmd/tool/dump"
	"github.com/chunklog/chunklog/cmd/tool/integrity"
)

const (
	toolUsage     = "tool"
	toolShortDesc = "Executes tools as subcommands"
	toolLongDesc  = "This command executes the specified log tool"
	toolExample   = "chunklog tool dump [flags]"
)

var (
	// Cmd is the tool command.
	Cmd = &cobra.Command{
		Use:        toolUsage,
		Short:      toolShortDesc,
		Long:       toolLongDesc,
		Aliases:    []string{"t"},
		SuggestFor: []string{"dump", "integrity", "bench"},
		Example:    toolExample,
	}
)

func init() {
	Cmd.AddCommand(dump.Cmd)
	Cmd.AddCommand(integrity.Cmd)
	Cmd.AddCommand(bench.Cmd)
}
