package cmd

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a node configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		name := args[0]
		if err := state.NameValidator(name); err != nil {
			fmt.Printf("Invalid name: %s\n", name)
			os.Exit(1)
		}

		mid, err := parseOrRandomMid(cmd.Flag("mid").Value.String())
		if err != nil {
			fmt.Println("Invalid MID:", err.Error())
			os.Exit(1)
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")

		nodeCfg := state.DefaultNodeCfg(name, mid, geo.Position{Latitude: lat, Longitude: lon})
		if signed, _ := cmd.Flags().GetBool("sign"); signed {
			nodeCfg.Security = state.SecurityCfg{Entity: state.SecurityNaive, Key: state.GenerateKey()}
			nodeCfg.MIB.SecurityEnabled = true
		}
		if err := state.NodeConfigValidator(&nodeCfg); err != nil {
			panic(err)
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			panic(err)
		}
		err = os.WriteFile(state.NodeConfigPath, ncfg, 0600)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "init",
}

// parseOrRandomMid parses s, or generates a locally administered unicast MID when s is empty.
func parseOrRandomMid(s string) (protocol.MacAddress, error) {
	if s != "" {
		return protocol.ParseMac(s)
	}
	var mid protocol.MacAddress
	if _, err := rand.Read(mid[:]); err != nil {
		return mid, err
	}
	mid[0] = mid[0]&0xfc | 0x02
	return mid, nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("mid", "", "station MAC address, random when empty")
	initCmd.Flags().Float64("lat", 0, "latitude in degrees")
	initCmd.Flags().Float64("lon", 0, "longitude in degrees")
	initCmd.Flags().Bool("sign", false, "sign packets with a freshly generated key")
}
