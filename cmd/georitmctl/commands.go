package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var errDeviceNotFound = errors.New("device not found")

func newLoginCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, creds, err := buildClient(v)
			if err != nil {
				return err
			}
			result, err := cli.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"Logged in as %s: %d mobile and %d stationary objects.\n",
				creds.Login, result.MobileCount, result.StationaryCount,
			)
			return nil
		},
	}
}

func newDevicesCmd(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List every device of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := newClient(cmd, v)
			if err != nil {
				return err
			}
			devices, err := cli.Devices(cmd.Context())
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), format, devices)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newDeviceCmd(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "device <id>",
		Short: "Show a device with its areas and zones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd, v)
			if err != nil {
				return err
			}
			dev, err := cli.Device(cmd.Context(), georitm.ID(args[0]))
			if err != nil {
				return err
			}
			if dev == nil {
				return fmt.Errorf("%w: %s", errDeviceNotFound, args[0])
			}
			if format == "table" {
				return printAreas(cmd.OutOrStdout(), *dev)
			}
			return encode(cmd.OutOrStdout(), format, dev)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format: table, json or yaml")
	return cmd
}

func newCommandCmd(v *viper.Viper, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newClient(cmd, v)
			if err != nil {
				return err
			}
			dev, err := cli.Device(cmd.Context(), georitm.ID(args[0]))
			if err != nil {
				return err
			}
			if dev == nil {
				return fmt.Errorf("%w: %s", errDeviceNotFound, args[0])
			}
			targets := georitm.Targets(*dev)
			if len(targets) == 0 {
				return fmt.Errorf("device %s has no named areas to %s", dev.ID, name)
			}
			send := cli.Arm
			if name == "disarm" {
				send = cli.Disarm
			}
			if err := send(cmd.Context(), *dev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %d targets of %q.\n", name, len(targets), dev.Name)
			return nil
		},
	}
}

func printDevices(w io.Writer, format string, devices []georitm.Device) error {
	if format != "table" {
		return encode(w, format, devices)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tONLINE\tGUARDED\tAREAS\tADDRESS")
	for _, dev := range devices {
		fmt.Fprintf(
			tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			dev.ID, dev.Name, dev.Type(), yesNo(dev.Online()), yesNo(dev.Guarded()), len(dev.Areas), dev.AddressShort,
		)
	}
	return tw.Flush()
}

func printAreas(w io.Writer, dev georitm.Device) error {
	fmt.Fprintf(w, "%s (%s), online: %s, guarded: %s\n", dev.Name, dev.ID, yesNo(dev.Online()), yesNo(dev.Guarded()))
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "AREA\tZONE\tNUM\tNAME\tALARM")
	for _, area := range dev.Areas {
		fmt.Fprintf(tw, "%s\t\t%d\t%s\t%s\n", area.ID, area.Num, area.Name, yesNo(area.Alarm()))
		for _, zone := range area.Zones {
			fmt.Fprintf(tw, "\t%s\t%d\t%s\t%s\n", zone.ID, zone.Num, zone.Name, yesNo(zone.Alarm()))
		}
	}
	return tw.Flush()
}

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %q", format)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
