package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calbright/smartcast/internal/config"
	"github.com/calbright/smartcast/internal/device"
	"github.com/calbright/smartcast/internal/discovery"
)

// Command flags
var (
	deviceAddr  string
	deviceUUID  string
	devicePort  int
	scanTimeout int
	useMDNS     bool
	keyAction   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceAddr, "device", "", "Device IP address (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&deviceUUID, "uuid", "", "Device UUID from the registry or a previous scan")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 0, "Control API port (default: probe 7345, then 9000)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(unpairCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(inputCmd)
	rootCmd.AddCommand(settingsCmd)
}

// discoverCmd finds devices on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover SmartCast devices on the network",
	Long: `Discover SmartCast devices using SSDP multicast discovery.

Sends a single search query and lists every device that replies within
the timeout, updating the registry with each device's last known address.`,
	Example: `  # Scan with the default 3-second timeout
  smartcast-ctl discover

  # Longer scan for slow networks
  smartcast-ctl discover --timeout 10

  # mDNS fallback for networks that filter SSDP
  smartcast-ctl discover --mdns`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from registry preferences)")
	discoverCmd.Flags().BoolVar(&useMDNS, "mdns", false, "Use mDNS instead of SSDP")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	timeout := scanTimeout
	if timeout <= 0 {
		timeout = registry.Preferences.DiscoverTimeout
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(timeout) * time.Second

	fmt.Printf("Scanning for SmartCast devices (timeout: %ds)...\n\n", timeout)

	var devices []*discovery.Descriptor
	if useMDNS {
		devices, err = scanner.ScanMDNS(cmd.Context())
	} else {
		devices, err = scanner.Scan(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the device is powered on and on the same network")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Try --mdns if the network filters SSDP multicast")
		fmt.Println("  - Use --device <ip> to skip discovery entirely")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		paired := ""
		if saved := registry.GetDevice(d.UUID); saved != nil && saved.AuthToken != "" {
			paired = " (paired)"
		}
		fmt.Printf("%d. %s%s\n", i+1, d.Name, paired)
		fmt.Printf("   Model: %s\n", d.Model)
		fmt.Printf("   UUID:  %s\n", d.UUID)
		fmt.Printf("   Addr:  %s\n\n", d.HostPort())

		entry := registry.EnsureDevice(d.UUID)
		entry.Nickname = d.Name
		entry.LastIP = d.IP
		entry.Port = d.Port
		entry.LastSeen = time.Now()
	}

	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	fmt.Println("Use 'smartcast-ctl pair --uuid <uuid>' to pair with a device")
	return nil
}

// pairCmd runs the interactive pairing flow
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a device using its on-screen PIN",
	Long: `Start the pairing handshake with a device.

The device displays a PIN on its screen; enter it when prompted. On
success the issued token is saved in the registry and reused by every
later command, so pairing is a one-time step per device.`,
	Example: `  # Pair with a previously discovered device
  smartcast-ctl pair --uuid 0d1b1a2c-...

  # Pair with a device at a known address
  smartcast-ctl pair --device 192.168.1.42`,
	RunE: runPair,
}

var clientName string

func init() {
	pairCmd.Flags().StringVar(&clientName, "name", "smartcast-ctl", "Client name shown in the device's paired-client list")
}

func runPair(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	sess, uuid, err := newSession(cmd.Context(), registry)
	if err != nil {
		return err
	}

	needsPIN, err := sess.BeginPair(cmd.Context(), clientName)
	if err != nil {
		return fmt.Errorf("failed to start pairing: %w", err)
	}

	pin := ""
	if needsPIN {
		fmt.Print("Enter the PIN shown on the device's screen (or 'q' to cancel): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			sess.CancelPair(cmd.Context())
			return fmt.Errorf("failed to read PIN: %w", err)
		}
		pin = strings.TrimSpace(line)
		if pin == "" || strings.EqualFold(pin, "q") {
			sess.CancelPair(cmd.Context())
			fmt.Println("Pairing cancelled.")
			return nil
		}
	}

	if err := sess.SubmitPIN(cmd.Context(), pin); err != nil {
		return fmt.Errorf("pairing failed: %w", err)
	}

	if uuid != "" {
		entry := registry.EnsureDevice(uuid)
		entry.AuthToken = sess.Token()
		entry.LastSeen = time.Now()
		if err := registry.Save(); err != nil {
			return fmt.Errorf("paired, but failed to save token: %w", err)
		}
		fmt.Println("Paired. Token saved to the registry.")
	} else {
		fmt.Printf("Paired. Token (no UUID known, not saved): %s\n", sess.Token())
	}
	return nil
}

// unpairCmd forgets a saved pairing
var unpairCmd = &cobra.Command{
	Use:   "unpair",
	Short: "Forget the saved pairing for a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deviceUUID == "" {
			return fmt.Errorf("--uuid is required")
		}
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if registry.GetDevice(deviceUUID) == nil {
			return fmt.Errorf("no saved device with UUID %s", deviceUUID)
		}
		registry.ForgetDevice(deviceUUID)
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Println("Pairing forgotten. The device still lists this client until re-paired.")
		return nil
	},
}

// keyCmd sends a virtual remote key
var keyCmd = &cobra.Command{
	Use:   "key <name>",
	Short: "Send a virtual remote key press",
	Long: `Send a virtual remote key interaction to a paired device.

Available keys:

  ` + strings.Join(sortedKeyNames(), ", "),
	Example: `  smartcast-ctl key volume-up
  smartcast-ctl key power
  smartcast-ctl key up --action keydown`,
	Args: cobra.ExactArgs(1),
	RunE: runKey,
}

func init() {
	keyCmd.Flags().StringVar(&keyAction, "action", "keypress", "Key action: keydown, keyup, or keypress")
}

func runKey(cmd *cobra.Command, args []string) error {
	key, err := device.ParseKey(args[0])
	if err != nil {
		return err
	}

	var action device.KeyAction
	switch strings.ToLower(keyAction) {
	case "keydown":
		action = device.KeyDown
	case "keyup":
		action = device.KeyUp
	case "keypress":
		action = device.KeyPress
	default:
		return fmt.Errorf("unknown action %q", keyAction)
	}

	sess, _, err := pairedSession(cmd.Context())
	if err != nil {
		return err
	}
	if err := sess.SendKey(cmd.Context(), key, action); err != nil {
		return fmt.Errorf("key command failed: %w", err)
	}
	fmt.Printf("Sent %s %s\n", args[0], strings.ToLower(string(action)))
	return nil
}

// powerCmd queries the device power state
var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Show whether the device is on",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		// Power state works unauthenticated on most firmware
		sess, _, err := newSession(cmd.Context(), registry)
		if err != nil {
			return err
		}
		on, err := sess.PowerState(cmd.Context())
		if err != nil {
			return fmt.Errorf("state query failed: %w", err)
		}
		if on {
			fmt.Println("on")
		} else {
			fmt.Println("off")
		}
		return nil
	},
}

// infoCmd queries the device self-description
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device model, serial, and firmware information",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := pairedSession(cmd.Context())
		if err != nil {
			return err
		}
		info, err := sess.Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("info query failed: %w", err)
		}
		fmt.Printf("Name:     %s\n", info.CastName)
		fmt.Printf("Model:    %s\n", info.ModelName)
		fmt.Printf("Serial:   %s\n", info.SerialNumber)
		fmt.Printf("Firmware: %s\n", info.FWVersion)
		fmt.Printf("Inputs:   %s\n", strings.Join(info.Inputs, ", "))
		return nil
	},
}

// inputCmd shows or switches the active input
var inputCmd = &cobra.Command{
	Use:   "input [name]",
	Short: "Show, list, or switch the active input",
	Example: `  # Show the current input
  smartcast-ctl input

  # List available inputs
  smartcast-ctl input --list

  # Switch input
  smartcast-ctl input HDMI-1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInput,
}

var listInputs bool

func init() {
	inputCmd.Flags().BoolVar(&listInputs, "list", false, "List available inputs")
}

func runInput(cmd *cobra.Command, args []string) error {
	sess, _, err := pairedSession(cmd.Context())
	if err != nil {
		return err
	}

	if listInputs {
		inputs, err := sess.Inputs(cmd.Context())
		if err != nil {
			return err
		}
		for _, in := range inputs {
			if in.FriendlyName != "" && in.FriendlyName != in.Name {
				fmt.Printf("%-10s %s\n", in.Name, in.FriendlyName)
			} else {
				fmt.Println(in.Name)
			}
		}
		return nil
	}

	if len(args) == 0 {
		current, err := sess.CurrentInput(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(current.Name)
		return nil
	}

	if err := sess.SetInput(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("input change failed: %w", err)
	}
	fmt.Printf("Switched to %s\n", args[0])
	return nil
}

// settingsCmd reads and writes the device settings tree
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write device settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "List the settings nodes at a tree path",
	Example: `  # Top-level settings groups
  smartcast-ctl settings get

  # Audio settings
  smartcast-ctl settings get audio`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := pairedSession(cmd.Context())
		if err != nil {
			return err
		}
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		nodes, err := sess.ReadSettings(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("settings read failed: %w", err)
		}
		for _, n := range nodes {
			if n.Hidden {
				continue
			}
			switch n.Kind {
			case device.KindMenu:
				fmt.Printf("%s/\n", n.CName)
			default:
				ro := ""
				if n.ReadOnly {
					ro = " (read-only)"
				}
				fmt.Printf("%-24s %s = %s%s\n", n.CName, n.Kind, n.StringValue(), ro)
			}
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Write a settings value",
	Long: `Write a new value to a settings node.

The value is checked client-side against the node's declared type and
range before anything is sent to the device. Values parse as booleans
("true"/"false"), then integers, then strings.`,
	Example: `  smartcast-ctl settings set audio/volume 25
  smartcast-ctl settings set picture/picture_mode Calibrated`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := pairedSession(cmd.Context())
		if err != nil {
			return err
		}
		if err := sess.WriteSettingPath(cmd.Context(), args[0], parseValue(args[1])); err != nil {
			return fmt.Errorf("settings write failed: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// parseValue interprets a CLI argument as bool, int, or string
func parseValue(arg string) any {
	if b, err := strconv.ParseBool(arg); err == nil {
		return b
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return n
	}
	return arg
}

func sortedKeyNames() []string {
	names := device.KeyNames()
	sort.Strings(names)
	return names
}

// newSession builds a session for the selected device. Selection order:
// --device address, then --uuid registry lookup (falling back to a scan
// when the address is stale). A saved token is always resumed; commands
// that require a pairing check the state via pairedSession.
func newSession(ctx context.Context, registry *config.Registry) (*device.Session, string, error) {
	ident := registry.ClientIdentity("smartcast-ctl")
	opts := []device.Option{device.WithClientIdentity(ident.ID, ident.Name)}
	// Identity may have just been generated
	if err := registry.Save(); err != nil {
		return nil, "", err
	}

	if deviceAddr != "" {
		port := devicePort
		if port == 0 {
			probed, err := discovery.Probe(ctx, deviceAddr)
			if err != nil {
				return nil, "", err
			}
			port = probed.Port
		}
		if deviceUUID != "" {
			if saved := registry.GetDevice(deviceUUID); saved != nil && saved.AuthToken != "" {
				return device.ResumeAddr(deviceAddr, port, saved.AuthToken, opts...), deviceUUID, nil
			}
		}
		return device.NewSessionAddr(deviceAddr, port, opts...), deviceUUID, nil
	}

	if deviceUUID == "" {
		return nil, "", fmt.Errorf("select a device with --uuid or --device (run 'smartcast-ctl discover' first)")
	}

	saved := registry.GetDevice(deviceUUID)
	if saved == nil || saved.LastIP == "" {
		scanner := discovery.NewScanner()
		desc, err := scanner.FindByUUID(ctx, deviceUUID)
		if err != nil {
			return nil, "", err
		}
		if desc == nil {
			return nil, "", fmt.Errorf("device %s not found on the network", deviceUUID)
		}
		entry := registry.EnsureDevice(deviceUUID)
		entry.Nickname = desc.Name
		entry.LastIP = desc.IP
		entry.Port = desc.Port
		entry.LastSeen = time.Now()
		if err := registry.Save(); err != nil {
			return nil, "", err
		}
		saved = entry
	}

	port := devicePort
	if port == 0 {
		port = saved.Port
	}
	if port == 0 {
		port = discovery.DefaultAPIPort
	}

	if saved.AuthToken != "" {
		return device.ResumeAddr(saved.LastIP, port, saved.AuthToken, opts...), deviceUUID, nil
	}
	return device.NewSessionAddr(saved.LastIP, port, opts...), deviceUUID, nil
}

// pairedSession builds a session and requires a saved pairing
func pairedSession(ctx context.Context) (*device.Session, string, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, "", err
	}
	sess, uuid, err := newSession(ctx, registry)
	if err != nil {
		return nil, "", err
	}
	if sess.State() != device.Paired {
		return nil, "", fmt.Errorf("not paired with this device; run 'smartcast-ctl pair' first")
	}
	return sess, uuid, nil
}
