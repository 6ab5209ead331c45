package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/gopacket/gopacket"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <hex>",
	Aliases: []string{"i"},
	Short:   "Decodes a GeoNetworking packet and prints its headers",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: geonet inspect <hex>")
			return
		}
		data, err := hex.DecodeString(strings.Join(strings.Fields(args[0]), ""))
		if err != nil {
			fmt.Println("Error:", err.Error())
			os.Exit(1)
		}
		if err := describePacket(os.Stdout, data); err != nil {
			fmt.Println("Error:", err.Error())
			os.Exit(1)
		}
	},
	GroupID: "gn",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func describePacket(w io.Writer, data []byte) error {
	pdu, payload, err := protocol.DecodePacket(data, gopacket.NilDecodeFeedback)
	if err != nil {
		return err
	}
	b := pdu.Basic
	fmt.Fprintf(w, "basic:    version=%d next=%s lifetime=%s rhl=%d\n", b.Version, b.NextHeader, b.Lifetime, b.HopLimit)
	if pdu.IsSecured() {
		msg, err := security.ParseSecuredMessage(pdu.Secured)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "secured:  version=%d aid=%d generated=%s signed=%t\n", msg.Version, msg.Aid, msg.Generated.UTC().Format("2006-01-02T15:04:05.000Z"), msg.Signed())
		common, ext, inner, err := protocol.DecodePlaintext(msg.Payload, gopacket.NilDecodeFeedback)
		if err != nil {
			return err
		}
		pdu.Common, pdu.Extended, payload = common, ext, inner
	}
	c := pdu.Common
	fmt.Fprintf(w, "common:   next=%s type=%s tc=%s mobile=%t pl=%d mhl=%d\n", c.NextHeader, c.HeaderType, c.TrafficClass, c.Mobile(), c.PayloadLength, c.MaxHopLimit)
	switch ext := pdu.Extended.(type) {
	case *protocol.BeaconHeader:
		describeSource(w, ext.Source)
	case *protocol.ShbHeader:
		describeSource(w, ext.Source)
	case *protocol.GbcHeader:
		fmt.Fprintf(w, "gbc:      sn=%d\n", ext.SequenceNumber)
		describeSource(w, ext.Source)
		if area, err := ext.Destination(c.HeaderType); err == nil {
			fmt.Fprintf(w, "area:     %s\n", area)
		} else {
			fmt.Fprintf(w, "area:     invalid (%v)\n", err)
		}
	}
	fmt.Fprintf(w, "payload:  %s\n", hex.EncodeToString(payload))
	return nil
}

func describeSource(w io.Writer, pv protocol.LongPositionVector) {
	pos := pv.Position()
	fmt.Fprintf(w, "source:   %s ts=%d pos=%.7f,%.7f pai=%t speed=%.2fm/s heading=%.1f\n",
		pv.Address, pv.Timestamp, pos.Latitude, pos.Longitude, pv.PositionAccuracy, pv.SpeedMetresPerSecond(), pv.HeadingDegrees())
}
