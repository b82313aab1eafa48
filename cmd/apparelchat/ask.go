package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ApparelChat/internal/chatbot"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var attachPath string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Example: `  apparelchat ask "Show me linen shirts under $50"
  apparelchat ask --mode vto --attach me.jpg "How does the denim jacket look on me?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			if text == "" && attachPath == "" {
				return fmt.Errorf("nothing to send: give a message or --attach an image")
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			cb, err := chatbot.NewChatBot(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize chatbot: %w", err)
			}
			defer cb.Close()

			reply, err := cb.Ask(cmd.Context(), text, attachPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&attachPath, "attach", "", "Image file to send with the message")
	return cmd
}
