package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/encodeous/geonet/state"
	"github.com/spf13/cobra"
)

var genKey = false

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generates a signing keypair. Outputs Private Key to stdout, Public Key to Stderr.",
	Run: func(cmd *cobra.Command, args []string) {
		var privKey state.PrivateKey
		if !genKey {
			in := bufio.NewReader(os.Stdin)
			ln, err := in.ReadString('\n')
			if err != nil {
				panic(err)
			}
			err = privKey.UnmarshalText([]byte(strings.TrimSpace(ln)))
			if err != nil {
				fmt.Println("Invalid key:", err.Error())
				os.Exit(1)
			}
		} else {
			privKey = state.GenerateKey()
			privKeyStr, err := privKey.MarshalText()
			if err != nil {
				panic(err)
			}
			fmt.Println(string(privKeyStr))
		}
		pubKeyStr, err := privKey.Pubkey().MarshalText()
		if err != nil {
			panic(err)
		}
		_, _ = fmt.Fprintln(os.Stderr, string(pubKeyStr))
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.Flags().BoolVarP(&genKey, "gen", "g", false, "Generate a new private key instead of reading one from stdin")
}
