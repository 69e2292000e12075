package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "轮询一次媒体会话并输出 JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openBridge()
		if err != nil {
			return err
		}
		defer env.Close()

		snapshots, err := env.bridge.Poll(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshots)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
