package cmd

import (
	"fmt"
	"strconv"

	"mediabridge/core/media"

	"github.com/spf13/cobra"
)

var actionCmd = &cobra.Command{
	Use:   "action <player-id> <play|pause|next|prev|position> [position-ms]",
	Short: "向播放器发送控制指令",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		playerID, action := args[0], media.Action(args[1])
		if !action.Valid() {
			return fmt.Errorf("unknown action %q", args[1])
		}

		var position *uint64
		if len(args) == 3 {
			ms, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[2], err)
			}
			position = &ms
		}

		env, err := openBridge()
		if err != nil {
			return err
		}
		defer env.Close()

		// sessions are only addressable once a poll has registered them
		if _, err := env.bridge.Poll(cmd.Context()); err != nil {
			return err
		}
		if !env.bridge.Registry().Contains(playerID) {
			fmt.Printf("no media player %q, available: %v\n", playerID, env.bridge.Registry().PlayerIDs())
			return nil
		}

		if err := env.bridge.SendAction(playerID, action, position); err != nil {
			return err
		}
		env.bridge.Wait()
		fmt.Printf("%s sent to %s\n", action, playerID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionCmd)
}
