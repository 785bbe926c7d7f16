package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	config "github.com/avvvet/rps-services/configs"
	"github.com/avvvet/rps-services/internal/playround"
	"github.com/avvvet/rps-services/internal/rps"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playround",
		Short: "Play one rock-paper-scissors round against the game service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv("playround")
			if v, _ := cmd.Flags().GetBool("verbose"); !v {
				log.SetLevel(log.WarnLevel)
			}
		},
		RunE: playRound,
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log every step")
	addPlayFlags(cmd)
	cmd.AddCommand(commitmentCmd())
	return cmd
}

func addPlayFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", "http://localhost:8080", "game service base url")
	cmd.Flags().String("secret", "", "JWT secret, defaults to JWT_SECRET_KEY")

	cmd.Flags().String("p1", "alice", "player1 account")
	cmd.Flags().String("p2", "bob", "player2 account")
	cmd.Flags().String("move1", "rock", "player1 move")
	cmd.Flags().String("move2", "paper", "player2 move")
	cmd.Flags().String("salt1", "", "player1 salt, random when empty")
	cmd.Flags().String("salt2", "", "player2 salt, random when empty")

	cmd.Flags().Uint64P("bet", "b", 10, "bet per player")
	cmd.Flags().Bool("withdraw", false, "withdraw winnings after the round")
	cmd.Flags().Duration("timeout", 30*time.Second, "overall deadline")
}

func playRound(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	str := func(name string) string { v, _ := flags.GetString(name); return v }

	secret := str("secret")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET_KEY")
	}
	if secret == "" {
		return fmt.Errorf("no JWT secret, pass --secret or set JWT_SECRET_KEY")
	}

	m1, err := rps.ParseMove(str("move1"))
	if err != nil {
		return err
	}
	m2, err := rps.ParseMove(str("move2"))
	if err != nil {
		return err
	}
	bet, _ := flags.GetUint64("bet")
	withdraw, _ := flags.GetBool("withdraw")
	timeout, _ := flags.GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := playround.NewClient(str("api"), secret)
	res, err := client.Play(ctx, playround.Round{
		Player1:  playround.Player{Account: str("p1"), Move: m1, Salt: str("salt1")},
		Player2:  playround.Player{Account: str("p2"), Move: m2, Salt: str("salt2")},
		Bet:      bet,
		Withdraw: withdraw,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// commitmentCmd prints the commitment a player would submit.
func commitmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commitment <move> <salt>",
		Short: "Compute keccak256(move || salt)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := rps.ParseMove(args[0])
			if err != nil {
				return err
			}
			s, err := rps.ParseSecret(args[1])
			if err != nil {
				return err
			}
			fmt.Println(rps.Commit(m, s))
			return nil
		},
	}
	return cmd
}
