package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csdesk/console-cs/internal/notify"
)

// pushCmd manages this device's push subscription with the backend.
var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Manage push notification delivery for this device",
}

var pushSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Register this device for push notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[push] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		pm := notify.NewPushManager(client, st, logger)
		if err := pm.Subscribe(cmd.Context()); err != nil {
			return err
		}
		endpoint, _ := pm.Endpoint(cmd.Context())
		fmt.Printf("Subscribed: %s\n", endpoint)
		return nil
	},
}

var pushUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Remove this device's push subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[push] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		pm := notify.NewPushManager(client, st, logger)
		if err := pm.Unsubscribe(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Unsubscribed")
		return nil
	},
}

func init() {
	pushCmd.AddCommand(pushSubscribeCmd)
	pushCmd.AddCommand(pushUnsubscribeCmd)
	rootCmd.AddCommand(pushCmd)
}
